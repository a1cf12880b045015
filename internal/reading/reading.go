// Package reading defines the sensor snapshot the surveillance engine evaluates and the
// collaborator contract used to obtain it.
package reading

import (
	"context"
	"time"
)

// Reading is the latest sensor snapshot of a hive.
type Reading struct {
	EntityID    string    `json:"entityId"`
	LidOpen     bool      `json:"lidOpen"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Weight      float64   `json:"weight"`
	Battery     float64   `json:"battery"`
	Timestamp   time.Time `json:"timestamp"`
}

// Hazard reports whether the reading shows an open lid.
func (r Reading) Hazard() bool {
	return r.LidOpen
}

// Fetcher returns the latest reading of an entity. A nil reading with a nil error means the
// entity has not reported yet.
type Fetcher interface {
	Latest(ctx context.Context, entityID string) (*Reading, error)
}

type FetcherFunc func(ctx context.Context, entityID string) (*Reading, error)

func (f FetcherFunc) Latest(ctx context.Context, entityID string) (*Reading, error) {
	return f(ctx, entityID)
}
