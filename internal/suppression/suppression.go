// Package suppression keeps the per-hive rules that mute alert delivery, either for a
// bounded duration or for the whole session, and writes them through to a persister.
package suppression

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-hive/hivewatch/internal/clock"
	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/suppression/model"
)

var ErrInvalidDuration = errors.New("suppression: bounded rule needs a positive duration")

// Persister is the durable storage port for the rule list.
type Persister interface {
	Load(ctx context.Context) ([]model.Rule, error)
	Save(ctx context.Context, rules []model.Rule) error
}

// PersistError is returned when the in-memory change succeeded but the write-through did not.
// The change stays in effect for the current process.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("suppression: persist after %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Status is the outcome of a suppression check.
type Status struct {
	Suppressed bool       `json:"suppressed"`
	Kind       model.Kind `json:"kind,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

type Store struct {
	mtx       sync.Mutex
	persister Persister
	clock     clock.Clock
	rules     map[string]model.Rule
}

// New loads the persisted rules. A load failure is logged and the store starts empty.
func New(ctx context.Context, persister Persister, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		clock:     clock.Real{},
		rules:     map[string]model.Rule{},
	}
	for _, f := range opts {
		f(s)
	}

	logger := logging.FromContext(ctx)
	rules, err := persister.Load(ctx)
	if err != nil {
		logger.Errorf("unable load suppression rules, starting empty: %v", err)
		return s
	}
	for _, r := range rules {
		// older rules for the same entity are replaced, not accumulated
		if prev, ok := s.rules[r.EntityID]; ok && prev.CreatedAt > r.CreatedAt {
			continue
		}
		s.rules[r.EntityID] = r
	}
	logger.Infof("loaded %d suppression rules", len(s.rules))
	return s
}

// IsSuppressed checks the rule for entityID, dropping expired bounded rules first.
// The returned status is valid even when a *PersistError is returned.
func (s *Store) IsSuppressed(ctx context.Context, entityID string) (Status, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	err := s.pruneLocked(ctx)
	r, ok := s.rules[entityID]
	if !ok {
		return Status{}, err
	}
	st := Status{Suppressed: true, Kind: r.Kind}
	if r.Kind == model.KindBounded {
		expiresAt := r.ExpiresAt()
		st.ExpiresAt = &expiresAt
	}
	return st, err
}

// Suppress replaces any rule for entityID. duration is ignored for session rules.
func (s *Store) Suppress(ctx context.Context, entityID string, kind model.Kind, duration time.Duration) error {
	switch kind {
	case model.KindBounded:
		if duration <= 0 {
			return ErrInvalidDuration
		}
	case model.KindSession:
	default:
		return fmt.Errorf("suppression: unknown kind %d", kind)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.rules[entityID] = model.NewRule(entityID, kind, duration, s.clock.Now())
	if err := s.saveLocked(ctx); err != nil {
		return &PersistError{Op: "suppress", Err: err}
	}
	return nil
}

// Reactivate removes any rule for entityID. It reports whether a rule existed.
func (s *Store) Reactivate(ctx context.Context, entityID string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.rules[entityID]; !ok {
		return false, nil
	}
	delete(s.rules, entityID)
	if err := s.saveLocked(ctx); err != nil {
		return true, &PersistError{Op: "reactivate", Err: err}
	}
	return true, nil
}

// Rules returns the active rules sorted by entity id.
func (s *Store) Rules(ctx context.Context) ([]model.Rule, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	err := s.pruneLocked(ctx)
	return s.snapshotLocked(), err
}

func (s *Store) pruneLocked(ctx context.Context) error {
	now := s.clock.Now()
	pruned := false
	for id, r := range s.rules {
		if r.Expired(now) {
			delete(s.rules, id)
			pruned = true
		}
	}
	if !pruned {
		return nil
	}
	if err := s.saveLocked(ctx); err != nil {
		return &PersistError{Op: "prune", Err: err}
	}
	return nil
}

func (s *Store) saveLocked(ctx context.Context) error {
	return s.persister.Save(ctx, s.snapshotLocked())
}

func (s *Store) snapshotLocked() []model.Rule {
	rules := make([]model.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].EntityID < rules[j].EntityID
	})
	return rules
}
