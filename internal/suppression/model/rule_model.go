package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StorageKey is the fixed key under which the rule list is persisted.
const StorageKey = "hivewatch:suppressions"

type Kind uint8

const (
	KindBounded Kind = iota + 1
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindBounded:
		return "bounded"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "bounded":
		*k = KindBounded
	case "session":
		*k = KindSession
	default:
		return fmt.Errorf("unknown suppression kind %q", string(b))
	}
	return nil
}

func NewRule(entityID string, kind Kind, duration time.Duration, now time.Time) Rule {
	r := Rule{
		ID:        uuid.New(),
		EntityID:  entityID,
		CreatedAt: now.UnixMilli(),
		Kind:      kind,
	}
	if kind == KindBounded {
		r.DurationMs = duration.Milliseconds()
	}
	return r
}

// Rule blocks alert delivery for one entity. DurationMs is 0 for session rules.
type Rule struct {
	ID         uuid.UUID `json:"id"`
	EntityID   string    `json:"entityId"`
	CreatedAt  int64     `json:"createdAt"`
	DurationMs int64     `json:"durationMs"`
	Kind       Kind      `json:"kind"`
}

// ExpiresAt is zero for session rules.
func (r Rule) ExpiresAt() time.Time {
	if r.Kind != KindBounded {
		return time.Time{}
	}
	return time.UnixMilli(r.CreatedAt + r.DurationMs)
}

// Expired reports whether a bounded rule has run out at now. Session rules never expire.
func (r Rule) Expired(now time.Time) bool {
	return r.Kind == KindBounded && r.CreatedAt+r.DurationMs <= now.UnixMilli()
}
