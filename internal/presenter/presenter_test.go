package presenter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-hive/hivewatch/internal/clock"
	"github.com/go-hive/hivewatch/internal/notify/model"
	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-hive/hivewatch/internal/suppression"
	suppressionModel "github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/go-hive/hivewatch/internal/surveillance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type collector struct {
	mtx  sync.Mutex
	list []model.Notification
}

func (c *collector) Notify(_ context.Context, n model.Notification) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.list = append(c.list, n)
	return nil
}

func (c *collector) has(severity model.Severity, msg string) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, n := range c.list {
		if n.Severity == severity && n.Message == msg {
			return true
		}
	}
	return false
}

type memPersister struct {
	mtx     sync.Mutex
	rules   []suppressionModel.Rule
	saveErr error
}

func (m *memPersister) Load(context.Context) ([]suppressionModel.Rule, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.rules, nil
}

func (m *memPersister) Save(_ context.Context, rules []suppressionModel.Rule) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rules = rules
	return nil
}

type hazards struct {
	mtx  sync.Mutex
	open map[string]bool
	err  map[string]error
}

func (h *hazards) Latest(_ context.Context, entityID string) (*reading.Reading, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if err := h.err[entityID]; err != nil {
		return nil, err
	}
	return &reading.Reading{EntityID: entityID, LidOpen: h.open[entityID], Timestamp: epoch}, nil
}

type fixture struct {
	adapter   *Adapter
	store     *suppression.Store
	persister *memPersister
	clock     *clock.Fake
	sink      *collector
	events    <-chan Event
}

func newFixture(t *testing.T, h *hazards) *fixture {
	t.Helper()
	ctx := context.Background()
	fake := clock.NewFake(epoch)
	persister := &memPersister{}
	store := suppression.New(ctx, persister, suppression.WithClock(fake))
	engine, err := surveillance.New(ctx, h, store, surveillance.WithClock(fake))
	require.NoError(t, err)

	sink := &collector{}
	adapter, err := New(ctx, engine, store, sink, WithNow(fake.Now))
	require.NoError(t, err)
	events, cancel := adapter.Subscribe(64)
	t.Cleanup(func() {
		cancel()
		_ = adapter.Close(context.Background())
	})
	return &fixture{adapter: adapter, store: store, persister: persister, clock: fake, sink: sink, events: events}
}

func (f *fixture) next(t *testing.T, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-f.events:
			require.True(t, ok, "event stream closed while waiting for %s", want)
			if e.Type == want {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", want)
		}
	}
}

func (f *fixture) notified(t *testing.T, severity model.Severity, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.sink.has(severity, msg)
	}, 2*time.Second, 5*time.Millisecond, "missing %s notification %q", severity, msg)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	ctx := context.Background()
	store := suppression.New(ctx, &memPersister{})
	_, err := New(ctx, nil, store, nil)
	require.Error(t, err)

	engine, err := surveillance.New(ctx, &hazards{}, store)
	require.NoError(t, err)
	_, err = New(ctx, engine, nil, nil)
	require.Error(t, err)
}

func TestAdapter_AlertLifecycle(t *testing.T) {
	h := &hazards{open: map[string]bool{"hive-1": true}}
	f := newFixture(t, h)
	ctx := context.Background()

	require.NoError(t, f.adapter.StartWatching("hive-1", "Orchard hive"))
	raised := f.next(t, EventAlertRaised)
	assert.Equal(t, "hive-1", raised.EntityID)
	require.NotNil(t, raised.Reading)
	assert.True(t, raised.Reading.LidOpen)
	f.notified(t, model.SeverityInfo, "Watching Orchard hive")
	f.notified(t, model.SeverityWarning, "Lid open on Orchard hive")

	alert, ok := f.adapter.ActiveAlert()
	require.True(t, ok)
	assert.Equal(t, "hive-1", alert.EntityID)
	watched := f.adapter.WatchedEntities()
	require.Len(t, watched, 1)
	assert.Equal(t, "Orchard hive", watched[0].Label)

	ok, err := f.adapter.SuppressActiveAlert(ctx, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	cleared := f.next(t, EventAlertCleared)
	assert.Equal(t, "hive-1", cleared.EntityID)
	changed := f.next(t, EventSuppressionChanged)
	require.NotNil(t, changed.Suppression)
	assert.True(t, changed.Suppression.Suppressed)
	f.notified(t, model.SeveritySuccess, "Alerts on Orchard hive muted for 1h0m0s")

	_, ok = f.adapter.ActiveAlert()
	assert.False(t, ok)
	status, err := f.adapter.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	assert.True(t, status.Suppressed)

	rules, err := f.adapter.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, suppressionModel.KindBounded, rules[0].Kind)

	removed, err := f.adapter.Reactivate(ctx, "hive-1")
	require.NoError(t, err)
	assert.True(t, removed)
	f.notified(t, model.SeveritySuccess, "Alerts on hive-1 reactivated")
	status, err = f.adapter.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	assert.False(t, status.Suppressed)
}

func TestAdapter_ActionsWithoutAlertAreNoops(t *testing.T) {
	f := newFixture(t, &hazards{})
	ctx := context.Background()

	assert.False(t, f.adapter.CloseActiveAlert())
	ok, err := f.adapter.SuppressActiveAlert(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.adapter.SuppressActiveAlertForSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	removed, err := f.adapter.Reactivate(ctx, "hive-9")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.False(t, f.adapter.StopWatching("hive-9"))
}

func TestAdapter_SessionSuppressPersistFailureWarns(t *testing.T) {
	h := &hazards{open: map[string]bool{"hive-1": true}}
	f := newFixture(t, h)
	f.persister.saveErr = errors.New("disk full")

	require.NoError(t, f.adapter.StartWatching("hive-1", ""))
	f.next(t, EventAlertRaised)

	ok, err := f.adapter.SuppressActiveAlertForSession(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	f.notified(t, model.SeverityWarning,
		"Alerts on hive-1 muted until reactivated, but the rule could not be saved: suppression: persist after suppress: disk full")

	status, err := f.store.IsSuppressed(context.Background(), "hive-1")
	require.NoError(t, err)
	assert.True(t, status.Suppressed)
	assert.Equal(t, suppressionModel.KindSession, status.Kind)
}

func TestAdapter_CloseAlertAndStopWatching(t *testing.T) {
	h := &hazards{open: map[string]bool{"hive-1": true}}
	f := newFixture(t, h)

	require.NoError(t, f.adapter.StartWatching("hive-1", ""))
	f.next(t, EventAlertRaised)
	require.True(t, f.adapter.CloseActiveAlert())
	f.next(t, EventAlertCleared)
	f.notified(t, model.SeverityInfo, "Alert on hive-1 closed")

	status, err := f.adapter.IsSuppressed(context.Background(), "hive-1")
	require.NoError(t, err)
	assert.False(t, status.Suppressed)

	f.clock.Advance(surveillance.DefaultInterval)
	f.next(t, EventAlertRaised)

	require.True(t, f.adapter.StopWatching("hive-1"))
	cleared := f.next(t, EventAlertCleared)
	assert.Equal(t, "hive-1", cleared.EntityID)
	f.next(t, EventWatchStopped)
	f.notified(t, model.SeverityInfo, "Stopped watching hive-1")
	assert.Empty(t, f.adapter.WatchedEntities())
}

func TestAdapter_RewatchClearsAlert(t *testing.T) {
	h := &hazards{open: map[string]bool{"hive-1": true}}
	f := newFixture(t, h)

	require.NoError(t, f.adapter.StartWatching("hive-1", "Orchard"))
	raised := f.next(t, EventAlertRaised)
	require.NotNil(t, raised.Alert)

	require.NoError(t, f.adapter.StartWatching("hive-1", "Orchard"))
	cleared := f.next(t, EventAlertCleared)
	assert.Equal(t, "hive-1", cleared.EntityID)
	require.NotNil(t, cleared.Alert)
	assert.Equal(t, raised.Alert.ID, cleared.Alert.ID)
	f.next(t, EventWatchStopped)
	f.next(t, EventWatchStarted)
	require.Len(t, f.adapter.WatchedEntities(), 1)
	assert.False(t, f.sink.has(model.SeverityInfo, "Stopped watching Orchard"))

	require.Eventually(t, func() bool {
		alert, ok := f.adapter.ActiveAlert()
		return ok && alert.ID != raised.Alert.ID
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, f.adapter.StopWatching("hive-1"))
	f.notified(t, model.SeverityInfo, "Stopped watching Orchard")
}

func TestAdapter_FetchErrorNotifies(t *testing.T) {
	h := &hazards{err: map[string]error{"hive-2": errors.New("gateway timeout")}}
	f := newFixture(t, h)

	require.NoError(t, f.adapter.StartWatching("hive-2", "Meadow"))
	failed := f.next(t, EventFetchFailed)
	assert.Equal(t, "gateway timeout", failed.Error)
	f.notified(t, model.SeverityError, "Could not read Meadow: gateway timeout")
	assert.Len(t, f.adapter.WatchedEntities(), 1)
}

func TestAdapter_CloseStopsEverything(t *testing.T) {
	ctx := context.Background()
	h := &hazards{open: map[string]bool{"hive-1": true}}
	f := newFixture(t, h)

	require.NoError(t, f.adapter.StartWatching("hive-1", ""))
	require.NoError(t, f.adapter.StartWatching("hive-2", ""))
	f.next(t, EventAlertRaised)

	require.NoError(t, f.adapter.Close(ctx))
	assert.Empty(t, f.adapter.WatchedEntities())
	_, ok := f.adapter.ActiveAlert()
	assert.False(t, ok)
	assert.Equal(t, 0, f.clock.Tickers())
	assert.True(t, f.sink.has(model.SeverityInfo, "Watching hive-2"))

	for range f.events {
	}
}
