package dto

import (
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/scene"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
)

// PositionRequest coordinates are limited to ±1e12, which also rejects NaN and ±Inf.
type PositionRequest struct {
	X *float64 `json:"x" validate:"required,gte=-1e12,lte=1e12"`
	Y *float64 `json:"y" validate:"required,gte=-1e12,lte=1e12"`
	Z *float64 `json:"z" validate:"required,gte=-1e12,lte=1e12"`
}

type PositionResponse struct {
	X       float64             `json:"x"`
	Y       float64             `json:"y"`
	Z       float64             `json:"z"`
	Summary *tilestream.Summary `json:"summary,omitempty"`
}

type DesiredQuery struct {
	X *float64 `form:"x" validate:"required,gte=-1e12,lte=1e12"`
	Y *float64 `form:"y" validate:"required,gte=-1e12,lte=1e12"`
	Z *float64 `form:"z" validate:"required,gte=-1e12,lte=1e12"`
}

type DesiredResponse struct {
	Count int              `json:"count"`
	Keys  []tilestream.Key `json:"keys"`
}

type TilesResponse struct {
	Generation uint64                  `json:"generation"`
	Desired    int                     `json:"desired"`
	Resident   int                     `json:"resident"`
	Tiles      []tilestream.TileStatus `json:"tiles"`
}

type TileResponse struct {
	tilestream.TileStatus
	Desired bool   `json:"desired"`
	URL     string `json:"url,omitempty"`
}

type TierRequest struct {
	Radius           int     `json:"radius" validate:"required,gte=1"`
	MaxVisibleHeight float64 `json:"max_visible_height" validate:"required,gt=0"`
}

type TierResponse struct {
	Size             int64   `json:"size"`
	Radius           int     `json:"radius"`
	MaxVisibleHeight float64 `json:"max_visible_height"`
}

type SceneResponse struct {
	Objects []scene.ObjectInfo `json:"objects"`
	Points  int                `json:"points"`
}

// ClientMessage is sent by websocket clients to move the camera.
type ClientMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x" validate:"gte=-1e12,lte=1e12"`
	Y    float64 `json:"y" validate:"gte=-1e12,lte=1e12"`
	Z    float64 `json:"z" validate:"gte=-1e12,lte=1e12"`
}

// ServerMessage is pushed to websocket clients. Snapshot carries the objects
// present when the stream started; later messages carry one Event each.
type ServerMessage struct {
	Type     string             `json:"type"`
	Snapshot []scene.ObjectInfo `json:"snapshot,omitempty"`
	Event    *scene.Event       `json:"event,omitempty"`
}
