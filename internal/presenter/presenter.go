// Package presenter binds the surveillance engine and the suppression store to an operator
// facing surface: state snapshots, forwarding actions, notifications and change events.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/notify"
	"github.com/go-hive/hivewatch/internal/notify/model"
	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-hive/hivewatch/internal/suppression"
	suppressionModel "github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/go-hive/hivewatch/internal/surveillance"
	"github.com/go-hive/hivewatch/pkg/iqueue"
)

// Engine is the surveillance engine as seen by the adapter.
type Engine interface {
	StartWatching(entityID, label string, callbacks surveillance.Callbacks) error
	StopWatching(entityID string) bool
	StopAll()
	ActiveAlert() (surveillance.ActiveAlert, bool)
	Watched() []surveillance.WatchedEntity
	CloseActiveAlert() (surveillance.ActiveAlert, bool)
	SuppressActiveAlert(ctx context.Context, d time.Duration) (surveillance.ActiveAlert, bool, error)
	SuppressActiveAlertForSession(ctx context.Context) (surveillance.ActiveAlert, bool, error)
}

// Store is the suppression store as seen by the adapter.
type Store interface {
	IsSuppressed(ctx context.Context, entityID string) (suppression.Status, error)
	Reactivate(ctx context.Context, entityID string) (bool, error)
	Rules(ctx context.Context) ([]suppressionModel.Rule, error)
}

type Option func(*Adapter)

// WithNow overrides the time source of events and notifications.
func WithNow(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// New creates an adapter. Notifications are queued and handed to sink on a background
// goroutine bound to ctx, so a tick never waits on delivery.
func New(ctx context.Context, engine Engine, store Store, sink notify.Sink, opts ...Option) (*Adapter, error) {
	if engine == nil {
		return nil, fmt.Errorf("surveillance engine is not defined")
	}
	if store == nil {
		return nil, fmt.Errorf("suppression store is not defined")
	}
	if sink == nil {
		sink = notify.Log{}
	}
	a := &Adapter{
		ctx:    ctx,
		engine: engine,
		store:  store,
		sink:   sink,
		queue:  iqueue.New[model.Notification](),
		broker: NewBroker(),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	for _, f := range opts {
		f(a)
	}
	go a.queue.Loop()
	go a.deliver()
	return a, nil
}

type Adapter struct {
	ctx    context.Context
	engine Engine
	store  Store
	sink   notify.Sink
	queue  *iqueue.Queue[model.Notification]
	broker *Broker
	done   chan struct{}
	now    func() time.Time
}

func (a *Adapter) deliver() {
	defer close(a.done)
	logger := logging.FromContext(a.ctx)
	for n := range a.queue.Receive() {
		if err := a.sink.Notify(a.ctx, n); err != nil {
			logger.Errorf("deliver notification %s: %v", n.ID, err)
		}
	}
}

func (a *Adapter) notify(entityID string, severity model.Severity, format string, args ...interface{}) {
	n := model.NewNotification(entityID, severity, format, args...)
	n.CreatedAt = a.now()
	if !a.queue.Send(n) {
		logging.FromContext(a.ctx).Debugf("adapter closed, dropping notification: %s", n.Message)
	}
}

func (a *Adapter) publish(e Event) {
	e.At = a.now()
	a.broker.Publish(e)
}

// Subscribe streams state change events until the returned func is called or the adapter is
// closed.
func (a *Adapter) Subscribe(buffer int) (<-chan Event, func()) {
	return a.broker.Subscribe(buffer)
}

func (a *Adapter) ActiveAlert() (surveillance.ActiveAlert, bool) {
	return a.engine.ActiveAlert()
}

func (a *Adapter) WatchedEntities() []surveillance.WatchedEntity {
	return a.engine.Watched()
}

func displayName(entityID, label string) string {
	if label != "" {
		return label
	}
	return entityID
}

// StartWatching begins surveillance of entityID. Watching an entity again restarts it, which
// is reported to subscribers as a stop followed by a start.
func (a *Adapter) StartWatching(entityID, label string) error {
	name := displayName(entityID, label)
	a.stop(entityID)
	err := a.engine.StartWatching(entityID, label, surveillance.Callbacks{
		OnAlert: func(id string, r reading.Reading) {
			e := Event{Type: EventAlertRaised, EntityID: id, Reading: &r}
			if alert, ok := a.engine.ActiveAlert(); ok && alert.EntityID == id {
				e.Alert = &alert
			}
			a.publish(e)
			a.notify(id, model.SeverityWarning, "Lid open on %s", name)
		},
		OnError: func(id string, err error) {
			a.publish(Event{Type: EventFetchFailed, EntityID: id, Error: err.Error()})
			a.notify(id, model.SeverityError, "Could not read %s: %v", name, err)
		},
	})
	if err != nil {
		return err
	}
	a.publish(Event{Type: EventWatchStarted, EntityID: entityID})
	a.notify(entityID, model.SeverityInfo, "Watching %s", name)
	return nil
}

// StopWatching reports whether entityID was watched.
func (a *Adapter) StopWatching(entityID string) bool {
	w, ok := a.stop(entityID)
	if !ok {
		return false
	}
	a.notify(entityID, model.SeverityInfo, "Stopped watching %s", displayName(w.EntityID, w.Label))
	return true
}

// stop ends the watch of entityID and publishes the resulting events. The engine drops the
// entity's alert along with its watch.
func (a *Adapter) stop(entityID string) (surveillance.WatchedEntity, bool) {
	w, watching := a.watchedEntity(entityID)
	if !watching {
		return surveillance.WatchedEntity{}, false
	}
	alert, hadAlert := a.engine.ActiveAlert()
	if !a.engine.StopWatching(entityID) {
		return surveillance.WatchedEntity{}, false
	}
	if hadAlert && alert.EntityID == entityID {
		a.publish(Event{Type: EventAlertCleared, EntityID: entityID, Alert: &alert})
	}
	a.publish(Event{Type: EventWatchStopped, EntityID: entityID})
	return w, true
}

func (a *Adapter) watchedEntity(entityID string) (surveillance.WatchedEntity, bool) {
	for _, w := range a.engine.Watched() {
		if w.EntityID == entityID {
			return w, true
		}
	}
	return surveillance.WatchedEntity{}, false
}

// CloseActiveAlert dismisses the alert without muting the entity. It reports false when no
// alert is active.
func (a *Adapter) CloseActiveAlert() bool {
	alert, ok := a.engine.CloseActiveAlert()
	if !ok {
		return false
	}
	a.publish(Event{Type: EventAlertCleared, EntityID: alert.EntityID, Alert: &alert})
	a.notify(alert.EntityID, model.SeverityInfo, "Alert on %s closed", displayName(alert.EntityID, alert.Label))
	return true
}

// SuppressActiveAlert mutes the alerting entity for d. A rule that could not be persisted is
// reported as a warning notification and is not returned as an error.
func (a *Adapter) SuppressActiveAlert(ctx context.Context, d time.Duration) (bool, error) {
	alert, ok, err := a.engine.SuppressActiveAlert(ctx, d)
	return a.suppressed(ctx, alert, ok, err, fmt.Sprintf("for %s", d))
}

func (a *Adapter) SuppressActiveAlertForSession(ctx context.Context) (bool, error) {
	alert, ok, err := a.engine.SuppressActiveAlertForSession(ctx)
	return a.suppressed(ctx, alert, ok, err, "until reactivated")
}

func (a *Adapter) suppressed(ctx context.Context, alert surveillance.ActiveAlert, ok bool, err error, span string) (bool, error) {
	name := displayName(alert.EntityID, alert.Label)
	var persistErr *suppression.PersistError
	switch {
	case err != nil && errors.As(err, &persistErr):
		a.notify(alert.EntityID, model.SeverityWarning, "Alerts on %s muted %s, but the rule could not be saved: %v", name, span, err)
	case err != nil:
		if alert.EntityID != "" {
			a.notify(alert.EntityID, model.SeverityError, "Could not mute %s: %v", name, err)
		}
		return false, err
	case !ok:
		return false, nil
	default:
		a.notify(alert.EntityID, model.SeveritySuccess, "Alerts on %s muted %s", name, span)
	}

	a.publish(Event{Type: EventAlertCleared, EntityID: alert.EntityID, Alert: &alert})
	status, _ := a.store.IsSuppressed(ctx, alert.EntityID)
	a.publish(Event{Type: EventSuppressionChanged, EntityID: alert.EntityID, Suppression: &status})
	return true, nil
}

func (a *Adapter) IsSuppressed(ctx context.Context, entityID string) (suppression.Status, error) {
	status, err := a.store.IsSuppressed(ctx, entityID)
	var persistErr *suppression.PersistError
	if err != nil && errors.As(err, &persistErr) {
		a.notify(entityID, model.SeverityWarning, "Expired suppressions could not be saved: %v", err)
		return status, nil
	}
	return status, err
}

// Reactivate removes any suppression of entityID and reports whether one existed.
func (a *Adapter) Reactivate(ctx context.Context, entityID string) (bool, error) {
	removed, err := a.store.Reactivate(ctx, entityID)
	var persistErr *suppression.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if err != nil {
		a.notify(entityID, model.SeverityWarning, "Alerts on %s reactivated, but the change could not be saved: %v", entityID, err)
	} else {
		a.notify(entityID, model.SeveritySuccess, "Alerts on %s reactivated", entityID)
	}
	a.publish(Event{Type: EventSuppressionChanged, EntityID: entityID, Suppression: &suppression.Status{}})
	return true, nil
}

func (a *Adapter) Rules(ctx context.Context) ([]suppressionModel.Rule, error) {
	return a.store.Rules(ctx)
}

// Close stops every watch, then waits until queued notifications are delivered or ctx is done.
func (a *Adapter) Close(ctx context.Context) error {
	alert, hadAlert := a.engine.ActiveAlert()
	a.engine.StopAll()
	if hadAlert {
		a.publish(Event{Type: EventAlertCleared, EntityID: alert.EntityID, Alert: &alert})
	}
	a.queue.Close()
	defer a.broker.Close()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}
