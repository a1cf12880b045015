// Package surveillance polls the latest reading of every watched hive on its own schedule and
// raises at most one active alert at a time when a lid is found open.
package surveillance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-hive/hivewatch/internal/clock"
	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-hive/hivewatch/internal/suppression"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

const DefaultInterval = 30 * time.Second

var (
	ErrEmptyEntity     = errors.New("surveillance: empty entity id")
	ErrInvalidDuration = errors.New("surveillance: suppression duration must be positive")
)

// Suppressor is the part of the suppression store the engine consults and writes to.
type Suppressor interface {
	IsSuppressed(ctx context.Context, entityID string) (suppression.Status, error)
	Suppress(ctx context.Context, entityID string, kind model.Kind, duration time.Duration) error
}

// Callbacks receive the outcome of ticks. Both are optional and run on the tick goroutine.
type Callbacks struct {
	OnAlert func(entityID string, r reading.Reading)
	OnError func(entityID string, err error)
}

// ActiveAlert is the single alert slot of an engine.
type ActiveAlert struct {
	ID       uuid.UUID       `json:"id"`
	EntityID string          `json:"entityId"`
	Label    string          `json:"label,omitempty"`
	Reading  reading.Reading `json:"reading"`
	RaisedAt time.Time       `json:"raisedAt"`
}

type WatchedEntity struct {
	EntityID string    `json:"entityId"`
	Label    string    `json:"label,omitempty"`
	Since    time.Time `json:"since"`
}

type Option func(*Engine)

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine. ctx is the parent of every fetch and carries the logger; stopping a
// watch does not cancel a fetch already in flight, its result is discarded instead.
func New(ctx context.Context, fetcher reading.Fetcher, suppressor Suppressor, opts ...Option) (*Engine, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("reading fetcher is not defined")
	}
	if suppressor == nil {
		return nil, fmt.Errorf("suppressor is not defined")
	}
	e := &Engine{
		ctx:        ctx,
		fetcher:    fetcher,
		suppressor: suppressor,
		interval:   DefaultInterval,
		clock:      clock.Real{},
		watches:    map[string]*watch{},
	}
	for _, f := range opts {
		f(e)
	}
	return e, nil
}

// Engine owns one ticker per watched entity and the engine-wide alert slot.
type Engine struct {
	mtx sync.Mutex

	ctx        context.Context
	fetcher    reading.Fetcher
	suppressor Suppressor
	interval   time.Duration
	clock      clock.Clock

	// Watched entities by id
	watches map[string]*watch
	// The single alert slot shared by all entities
	active *ActiveAlert
}

type watch struct {
	entityID  string
	label     string
	callbacks Callbacks
	since     time.Time
	ticker    clock.Ticker
	stopCh    chan struct{}
}

// StartWatching begins surveillance of entityID with an immediate first tick. Watching an
// entity that is already watched stops the previous schedule first.
func (e *Engine) StartWatching(entityID, label string, callbacks Callbacks) error {
	if entityID == "" {
		return ErrEmptyEntity
	}

	e.mtx.Lock()
	if prev, ok := e.watches[entityID]; ok {
		e.stopLocked(prev)
	}
	w := &watch{
		entityID:  entityID,
		label:     label,
		callbacks: callbacks,
		since:     e.clock.Now(),
		ticker:    e.clock.NewTicker(e.interval),
		stopCh:    make(chan struct{}),
	}
	e.watches[entityID] = w
	e.mtx.Unlock()

	logging.FromContext(e.ctx).Infof("start watching %s every %s", entityID, e.interval)
	go e.loop(w)
	return nil
}

// StopWatching cancels the schedule of entityID and clears the alert slot if it belongs to it.
// It reports whether the entity was watched.
func (e *Engine) StopWatching(entityID string) bool {
	e.mtx.Lock()
	w, ok := e.watches[entityID]
	if ok {
		e.stopLocked(w)
	}
	e.mtx.Unlock()

	if ok {
		logging.FromContext(e.ctx).Infof("stop watching %s", entityID)
	}
	return ok
}

// StopAll cancels every schedule and clears the alert slot.
func (e *Engine) StopAll() {
	e.mtx.Lock()
	n := len(e.watches)
	for _, w := range e.watches {
		e.stopLocked(w)
	}
	e.active = nil
	e.mtx.Unlock()

	logging.FromContext(e.ctx).Infof("stopped %d watches", n)
}

func (e *Engine) stopLocked(w *watch) {
	close(w.stopCh)
	w.ticker.Stop()
	delete(e.watches, w.entityID)
	if e.active != nil && e.active.EntityID == w.entityID {
		e.active = nil
	}
}

// ActiveAlert returns a copy of the alert slot.
func (e *Engine) ActiveAlert() (ActiveAlert, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.active == nil {
		return ActiveAlert{}, false
	}
	return *e.active, true
}

// Watched returns the watched entities sorted by id.
func (e *Engine) Watched() []WatchedEntity {
	e.mtx.Lock()
	out := make([]WatchedEntity, 0, len(e.watches))
	for _, w := range e.watches {
		out = append(out, WatchedEntity{EntityID: w.entityID, Label: w.label, Since: w.since})
	}
	e.mtx.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// IsWatching reports whether entityID has a live schedule.
func (e *Engine) IsWatching(entityID string) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	_, ok := e.watches[entityID]
	return ok
}

// CloseActiveAlert empties the slot without creating a suppression rule. The same hazard
// alerts again on a later tick if it persists.
func (e *Engine) CloseActiveAlert() (ActiveAlert, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.active == nil {
		return ActiveAlert{}, false
	}
	closed := *e.active
	e.active = nil
	return closed, true
}

// SuppressActiveAlert mutes the alerting entity for d and empties the slot.
func (e *Engine) SuppressActiveAlert(ctx context.Context, d time.Duration) (ActiveAlert, bool, error) {
	if d <= 0 {
		return ActiveAlert{}, false, ErrInvalidDuration
	}
	return e.suppressActive(ctx, model.KindBounded, d)
}

// SuppressActiveAlertForSession mutes the alerting entity until it is reactivated and
// empties the slot.
func (e *Engine) SuppressActiveAlertForSession(ctx context.Context) (ActiveAlert, bool, error) {
	return e.suppressActive(ctx, model.KindSession, 0)
}

// suppressActive clears the slot even when the rule could not be persisted, since the rule
// still holds in memory. A *suppression.PersistError is returned in that case.
func (e *Engine) suppressActive(ctx context.Context, kind model.Kind, d time.Duration) (ActiveAlert, bool, error) {
	alert, ok := e.ActiveAlert()
	if !ok {
		return ActiveAlert{}, false, nil
	}

	err := e.suppressor.Suppress(ctx, alert.EntityID, kind, d)
	var persistErr *suppression.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		return alert, false, fmt.Errorf("suppress %s: %w", alert.EntityID, err)
	}

	e.mtx.Lock()
	if e.active != nil && e.active.ID == alert.ID {
		e.active = nil
	}
	e.mtx.Unlock()
	return alert, true, err
}

func (e *Engine) loop(w *watch) {
	e.tick(w)
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.ticker.C():
			select {
			case <-w.stopCh:
				return
			default:
			}
			e.tick(w)
		}
	}
}

// current reports whether w is still the live watch for its entity.
func (e *Engine) current(w *watch) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.watches[w.entityID] == w
}

func (e *Engine) tick(w *watch) {
	ctx := e.ctx
	logger := logging.FromContext(ctx)
	record(ctx, w.entityID, mTicks)

	r, err := e.fetcher.Latest(ctx, w.entityID)
	if !e.current(w) {
		logger.Debugf("discarding late tick result for %s", w.entityID)
		return
	}
	if err != nil && ctx.Err() != nil {
		logger.Debugf("fetch for %s ended by shutdown: %v", w.entityID, err)
		return
	}
	if err != nil {
		record(ctx, w.entityID, mFetchErrors)
		logger.Errorf("fetch latest reading for %s: %v", w.entityID, err)
		if w.callbacks.OnError != nil {
			w.callbacks.OnError(w.entityID, err)
		}
		return
	}
	if r == nil {
		logger.Debugf("no reading for %s yet", w.entityID)
		return
	}
	if logger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		logger.Debugf("reading for %s: %s", w.entityID, spew.Sdump(r))
	}
	if !r.Hazard() {
		return
	}

	status, err := e.suppressor.IsSuppressed(ctx, w.entityID)
	if err != nil {
		logger.Warnf("suppression check for %s: %v", w.entityID, err)
	}
	if status.Suppressed {
		record(ctx, w.entityID, mSuppressed)
		logger.Debugf("hazard on %s muted by %s suppression", w.entityID, status.Kind)
		return
	}

	e.mtx.Lock()
	if e.watches[w.entityID] != w {
		e.mtx.Unlock()
		return
	}
	if e.active != nil {
		busy := e.active.EntityID
		e.mtx.Unlock()
		record(ctx, w.entityID, mDropped)
		logger.Debugf("hazard on %s dropped, alert slot held by %s", w.entityID, busy)
		return
	}
	e.active = &ActiveAlert{
		ID:       uuid.New(),
		EntityID: w.entityID,
		Label:    w.label,
		Reading:  *r,
		RaisedAt: e.clock.Now(),
	}
	e.mtx.Unlock()

	record(ctx, w.entityID, mAlerts)
	logger.Warnf("lid open on %s", w.entityID)
	if w.callbacks.OnAlert != nil {
		w.callbacks.OnAlert(w.entityID, *r)
	}
}
