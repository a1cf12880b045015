package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-hive/hivewatch/internal/bufpool"
	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/httputil"
	"github.com/go-hive/hivewatch/internal/logging"
	outboxDb "github.com/go-hive/hivewatch/internal/notify/database"
	"github.com/go-hive/hivewatch/internal/notify/model"
	"github.com/go-hive/hivewatch/pkg/rworker"
	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fastrand"
	"golang.org/x/net/context/ctxhttp"
)

type ProvideFn = func(chan<- error) (Manager, error)

const UserAgent = "hivewatch/0.1"

type Options struct {
	maxConcurrentRequest int
	requestTimeout       time.Duration
	interval             time.Duration
	jitter               time.Duration
	signingKey           []byte
	targets              Targets
}

type Option func(*manager)

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.interval = t
	}
}

func WithJitter(t time.Duration) Option {
	return func(o *manager) {
		o.opts.jitter = t
	}
}

func WithRequestTimeout(t time.Duration) Option {
	return func(o *manager) {
		o.opts.requestTimeout = t
	}
}

func WithSigningKey(key string) Option {
	return func(o *manager) {
		if key != "" {
			o.opts.signingKey = []byte(key)
		}
	}
}

func WithTargets(ts Targets) Option {
	return func(o *manager) {
		o.opts.targets = ts
	}
}

type payload struct {
	BatchID       string               `json:"batchId"`
	Target        string               `json:"target"`
	Notifications []model.Notification `json:"notifications"`
}

// Manager is the webhook sink with its background flusher.
type Manager interface {
	Sink
	Run(context.Context) error
	Stop()
}

// New creates the webhook manager. Batches that could not be delivered before shutdown are
// kept in db and retried after the next Run.
func New(db *database.DB, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	if db == nil {
		return nil, fmt.Errorf("webhook outbox database is not defined")
	}
	m := &manager{
		outbox:     outboxDb.New(db),
		shutdownCh: shutdownCh,
		clients:    map[string]*http.Client{},
		pending:    map[string][]model.Notification{},
		opts: Options{
			maxConcurrentRequest: 8,
			requestTimeout:       10 * time.Second,
			interval:             5 * time.Second,
		},
	}
	for _, f := range opts {
		f(m)
	}
	if m.opts.maxConcurrentRequest <= 0 {
		m.opts.maxConcurrentRequest = 1
	}
	m.targets = map[string]Target{}
	for _, target := range m.opts.targets {
		name := targetName(target)
		if _, err := url.Parse(target.URL); err != nil {
			return nil, fmt.Errorf("target %s url: %w", name, err)
		}
		client, err := httputil.NewClientFromConfig(target.HTTPConfig, false)
		if err != nil {
			return nil, fmt.Errorf("unable create client for target %s: %w", name, err)
		}
		m.targets[name] = target
		m.clients[name] = client
	}
	return m, nil
}

type manager struct {
	mtx        sync.Mutex
	opts       Options
	outbox     *outboxDb.DB
	shutdownCh chan<- error
	targets    map[string]Target
	clients    map[string]*http.Client
	pending    map[string][]model.Notification
	cancel     func()
}

func targetName(t Target) string {
	if t.Name != "" {
		return t.Name
	}
	return t.URL
}

func (m *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if err := m.initialize(ctx); err != nil {
		cancel()
		return fmt.Errorf("can not start webhook manager: %w", err)
	}
	go m.flusher(ctx)
	return nil
}

func (m *manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Notify queues n for every target whose minimum severity it meets.
func (m *manager) Notify(_ context.Context, n model.Notification) error {
	m.mtx.Lock()
	for name, target := range m.targets {
		if n.Severity.Rank() < target.MinSeverity.Rank() {
			continue
		}
		m.pending[name] = append(m.pending[name], n)
	}
	m.mtx.Unlock()
	return nil
}

// initialize moves batches left in the outbox back into the pending queues.
func (m *manager) initialize(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	batches, err := m.outbox.FindAll(ctx, nil)
	if err != nil {
		logger.Errorf("Error with fetching outbox from db, %v", err)
		return nil
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, batch := range batches {
		if _, ok := m.targets[batch.Target]; ok {
			m.pending[batch.Target] = append(m.pending[batch.Target], batch.Notifications...)
		}
		if err := m.outbox.Delete(ctx, batch); err != nil {
			return fmt.Errorf("unable delete batch on initialize: %w", err)
		}
	}
	if len(batches) > 0 {
		logger.Infof("restored %d undelivered notification batches", len(batches))
	}
	return nil
}

func (m *manager) shutdown() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for name, notifications := range m.pending {
		if len(notifications) == 0 {
			continue
		}
		if err := m.outbox.Store(context.Background(), model.NewBatch(name, notifications)); err != nil {
			return fmt.Errorf("webhook shutdown: unable store batch: %w", err)
		}
		delete(m.pending, name)
	}
	return nil
}

func (m *manager) nextFlush() time.Duration {
	d := m.opts.interval
	if ms := m.opts.jitter.Milliseconds(); ms > 0 {
		d += time.Duration(fastrand.Uint32n(uint32(ms))) * time.Millisecond
	}
	return d
}

func (m *manager) flusher(ctx context.Context) {
	logger := logging.FromContext(ctx)
	defer func() {
		if m.shutdownCh != nil {
			m.shutdownCh <- m.shutdown()
		}
	}()
	timer := time.NewTimer(m.nextFlush())
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			for _, err := range m.flush(ctx) {
				logger.Errorf("webhook error: %v", err)
			}
			timer.Reset(m.nextFlush())
		case <-ctx.Done():
			return
		}
	}
}

// flush sends one batch per target with pending notifications and returns the delivery errors.
func (m *manager) flush(ctx context.Context) []error {
	pool := rworker.New(m.opts.maxConcurrentRequest)

	m.mtx.Lock()
	batches := make([]model.Batch, 0, len(m.pending))
	for name, notifications := range m.pending {
		if len(notifications) == 0 {
			continue
		}
		batches = append(batches, model.NewBatch(name, notifications))
		delete(m.pending, name)
	}
	m.mtx.Unlock()

	for i := range batches {
		batch := batches[i]
		pool.Go(func() error {
			if err := m.outbox.Store(ctx, batch); err != nil {
				m.requeue(batch)
				return fmt.Errorf("unable store batch: %w", err)
			}
			if err := m.do(ctx, batch); err != nil {
				m.requeue(batch)
				if delErr := m.outbox.Delete(context.Background(), batch); delErr != nil {
					return fmt.Errorf("webhook do request error: %v; unable delete batch: %w", err, delErr)
				}
				return fmt.Errorf("webhook do request error: %w", err)
			}
			if err := m.outbox.Delete(context.Background(), batch); err != nil {
				return fmt.Errorf("unable delete delivered batch: %w", err)
			}
			return nil
		})
	}
	return pool.Wait()
}

// requeue puts a failed batch back in front of anything queued since.
func (m *manager) requeue(batch model.Batch) {
	m.mtx.Lock()
	m.pending[batch.Target] = append(batch.Notifications, m.pending[batch.Target]...)
	m.mtx.Unlock()
}

func (m *manager) do(ctx context.Context, batch model.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	target, ok := m.targets[batch.Target]
	if !ok {
		return fmt.Errorf("target %s not defined", batch.Target)
	}
	client := m.clients[batch.Target]

	buf := bufpool.Get()
	defer bufpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(payload{
		BatchID:       batch.ID.String(),
		Target:        batch.Target,
		Notifications: batch.Notifications,
	}); err != nil {
		return fmt.Errorf("unable encode json data: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, target.URL, buf)
	if err != nil {
		return fmt.Errorf("creating request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if len(m.opts.signingKey) > 0 {
		token, err := m.sign(batch)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ctxhttp.Do(ctx, client, req)
	if err != nil {
		return fmt.Errorf("sending request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("response was not 2xx (%d): %s", resp.StatusCode, body)
	}
	return nil
}

func (m *manager) sign(batch model.Batch) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "hivewatch",
		Subject:   batch.Target,
		ID:        batch.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.requestTimeout + time.Minute)),
	})
	signed, err := token.SignedString(m.opts.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign webhook token: %w", err)
	}
	return signed, nil
}
