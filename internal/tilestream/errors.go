package tilestream

import (
	"context"
	"errors"
)

var (
	ErrInvalidKey    = errors.New("invalid tile key")
	ErrInvalidBounds = errors.New("invalid dataset bounds")
	ErrInvalidTier   = errors.New("invalid tier configuration")
	ErrOutOfBounds   = errors.New("tile key outside dataset bounds")

	// Sources wrap these so the pipeline can classify failures.
	ErrUnexpectedStatus = errors.New("unexpected tile response status")
	ErrTileNotFound     = errors.New("tile not found")

	ErrMalformedPayload = errors.New("malformed tile payload")

	ErrMaterialize = errors.New("failed to materialize tile")
)

// failureReason maps a load error to the label used for the broken-tile metric.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTileNotFound):
		return "not_found"
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	case errors.Is(err, ErrMalformedPayload):
		return "decode"
	case errors.Is(err, ErrOutOfBounds):
		return "bounds"
	case errors.Is(err, ErrMaterialize):
		return "materialize"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}
