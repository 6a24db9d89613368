package tilestream

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// PointStride is the size in bytes of one encoded (x, y, z) point.
const PointStride = 3 * 4

// DecodePoints reads a flat little-endian float32 xyz buffer. An empty
// buffer is a tile with no points.
func DecodePoints(r io.Reader) ([]float32, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile payload: %w", err)
	}
	return DecodePointBytes(buf)
}

func DecodePointBytes(buf []byte) ([]float32, error) {
	if len(buf)%PointStride != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of points", ErrMalformedPayload, len(buf))
	}

	vertices := make([]float32, len(buf)/4)
	for i := range vertices {
		vertices[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vertices, nil
}

// EncodePoints is the inverse of DecodePoints.
func EncodePoints(vertices []float32) []byte {
	buf := make([]byte, len(vertices)*4)
	for i, v := range vertices {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
