package suppression

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-hive/hivewatch/internal/clock"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	rules   []model.Rule
	saves   int
	loadErr error
	saveErr error
}

func (m *memPersister) Load(context.Context) ([]model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Rule(nil), m.rules...), m.loadErr
}

func (m *memPersister) Save(_ context.Context, rules []model.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rules = append([]model.Rule(nil), rules...)
	return nil
}

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestStore_BoundedExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	p := &memPersister{}
	s := New(ctx, p, WithClock(clk))

	require.NoError(t, s.Suppress(ctx, "hive-1", model.KindBounded, time.Hour))

	st, err := s.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.True(t, st.Suppressed)
	require.Equal(t, model.KindBounded, st.Kind)
	require.NotNil(t, st.ExpiresAt)
	require.True(t, st.ExpiresAt.Equal(epoch.Add(time.Hour)))

	clk.Advance(time.Hour - time.Millisecond)
	st, _ = s.IsSuppressed(ctx, "hive-1")
	require.True(t, st.Suppressed)

	clk.Advance(time.Millisecond)
	st, err = s.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.False(t, st.Suppressed)
	require.Empty(t, p.rules, "pruned rule set must be persisted")
}

func TestStore_SessionUntilReactivate(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	p := &memPersister{}
	s := New(ctx, p, WithClock(clk))

	require.NoError(t, s.Suppress(ctx, "hive-1", model.KindSession, 0))
	clk.Advance(10 * 24 * time.Hour)

	st, err := s.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.True(t, st.Suppressed)
	require.Equal(t, model.KindSession, st.Kind)
	require.Nil(t, st.ExpiresAt)

	existed, err := s.Reactivate(ctx, "hive-1")
	require.NoError(t, err)
	require.True(t, existed)

	st, _ = s.IsSuppressed(ctx, "hive-1")
	require.False(t, st.Suppressed)

	existed, err = s.Reactivate(ctx, "hive-1")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestStore_ReplacesExistingRule(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	p := &memPersister{}
	s := New(ctx, p, WithClock(clk))

	require.NoError(t, s.Suppress(ctx, "hive-1", model.KindSession, 0))
	require.NoError(t, s.Suppress(ctx, "hive-1", model.KindBounded, time.Minute))

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, model.KindBounded, rules[0].Kind)
	require.Len(t, p.rules, 1)
}

func TestStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	p := &memPersister{}

	require.NoError(t, New(ctx, p, WithClock(clk)).Suppress(ctx, "hive-1", model.KindBounded, time.Hour))

	restarted := New(ctx, p, WithClock(clk))
	st, err := restarted.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.True(t, st.Suppressed)
}

func TestStore_LoadKeepsNewestPerEntity(t *testing.T) {
	ctx := context.Background()
	older := model.NewRule("hive-1", model.KindSession, 0, epoch.Add(-time.Hour))
	newer := model.NewRule("hive-1", model.KindBounded, time.Hour, epoch)
	p := &memPersister{rules: []model.Rule{newer, older}}

	s := New(ctx, p, WithClock(clock.NewFake(epoch)))
	st, err := s.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.Equal(t, model.KindBounded, st.Kind)
}

func TestStore_PersistFailureKeepsRuleInMemory(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{saveErr: errors.New("disk full")}
	s := New(ctx, p, WithClock(clock.NewFake(epoch)))

	err := s.Suppress(ctx, "hive-1", model.KindSession, 0)
	var persistErr *PersistError
	require.True(t, errors.As(err, &persistErr))
	require.Equal(t, "suppress", persistErr.Op)

	st, err := s.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.True(t, st.Suppressed)
}

func TestStore_LoadFailureStartsEmpty(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{loadErr: errors.New("corrupt")}
	s := New(ctx, p)

	st, err := s.IsSuppressed(ctx, "hive-1")
	require.NoError(t, err)
	require.False(t, st.Suppressed)
}

func TestStore_SuppressValidation(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, &memPersister{})
	tests := []struct {
		name     string
		kind     model.Kind
		duration time.Duration
		expected error
	}{
		{name: "zero_bounded", kind: model.KindBounded, duration: 0, expected: ErrInvalidDuration},
		{name: "negative_bounded", kind: model.KindBounded, duration: -time.Minute, expected: ErrInvalidDuration},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.ErrorIs(t, s.Suppress(ctx, "hive-1", test.kind, test.duration), test.expected)
		})
	}
	require.Error(t, s.Suppress(ctx, "hive-1", model.Kind(42), time.Minute))
}

func TestStatus_JSON(t *testing.T) {
	expiresAt := epoch.Add(time.Hour)
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{name: "not_suppressed", status: Status{}, want: `{"suppressed":false}`},
		{name: "session", status: Status{Suppressed: true, Kind: model.KindSession}, want: `{"suppressed":true,"kind":"session"}`},
		{
			name:   "bounded",
			status: Status{Suppressed: true, Kind: model.KindBounded, ExpiresAt: &expiresAt},
			want:   `{"suppressed":true,"kind":"bounded","expiresAt":"2024-05-01T11:00:00Z"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.status)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(b))
		})
	}
}
