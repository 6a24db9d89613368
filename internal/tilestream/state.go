package tilestream

import (
	"context"
	"time"
)

type State int

const (
	StateAbsent State = iota
	StateLoading
	StateLoaded
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateBroken:
		return "broken"
	default:
		return "absent"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// entry is the per-key lifecycle record. Only the fields of the current
// state are meaningful.
type entry struct {
	state State
	since time.Time

	// loading
	generation uint64
	cancel     context.CancelFunc

	// loaded
	drawable Drawable
	points   int

	// broken
	err error
}

type TileStatus struct {
	Key        Key       `json:"key"`
	State      State     `json:"state"`
	Since      time.Time `json:"since"`
	Generation uint64    `json:"generation,omitempty"`
	Points     int       `json:"points,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func (e *entry) status(k Key) TileStatus {
	s := TileStatus{
		Key:   k,
		State: e.state,
		Since: e.since,
	}
	switch e.state {
	case StateLoading:
		s.Generation = e.generation
	case StateLoaded:
		s.Points = e.points
	case StateBroken:
		if e.err != nil {
			s.Error = e.err.Error()
		}
	}
	return s
}
