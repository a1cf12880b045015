// Package srvenv holds the collaborators prepared by setup for the service main.
package srvenv

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/notify"
	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-hive/hivewatch/internal/server"
	"github.com/go-hive/hivewatch/internal/suppression"
	bolt "go.etcd.io/bbolt"
)

type Option func(*SrvEnv) *SrvEnv

func New(opts ...Option) *SrvEnv {
	env := &SrvEnv{checks: map[string]server.Checker{}}
	for _, f := range opts {
		env = f(env)
	}

	return env
}

type closer struct {
	name string
	fn   func() error
}

type SrvEnv struct {
	database  *database.DB
	fetcher   reading.Fetcher
	persister suppression.Persister
	notifier  notify.ProvideFn
	mqtt      *notify.MQTT
	checks    map[string]server.Checker
	closers   []closer
}

func (s *SrvEnv) Database() *database.DB {
	return s.database
}

func (s *SrvEnv) Fetcher() reading.Fetcher {
	return s.fetcher
}

func (s *SrvEnv) Persister() suppression.Persister {
	return s.persister
}

// ProvideNotifier is nil when webhooks are disabled.
func (s *SrvEnv) ProvideNotifier() notify.ProvideFn {
	return s.notifier
}

// MQTT is nil when no broker is configured.
func (s *SrvEnv) MQTT() *notify.MQTT {
	return s.mqtt
}

func (s *SrvEnv) HealthChecks() map[string]server.Checker {
	return s.checks
}

func WithDatabase(db *database.DB) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.database = db
		s.checks["bolt"] = func(context.Context) error {
			return db.DB.View(func(*bolt.Tx) error { return nil })
		}
		return s
	}
}

func WithFetcher(f reading.Fetcher) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.fetcher = f
		return s
	}
}

func WithPersister(p suppression.Persister) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.persister = p
		return s
	}
}

func WithNotifier(fn notify.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.notifier = fn
		return s
	}
}

func WithMQTT(m *notify.MQTT) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.mqtt = m
		return s
	}
}

func WithHealthCheck(name string, check server.Checker) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.checks[name] = check
		return s
	}
}

// WithCloser registers fn to run on Close, before the database is closed.
func WithCloser(name string, fn func() error) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.closers = append(s.closers, closer{name: name, fn: fn})
		return s
	}
}

func (s *SrvEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs []error
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		logging.FromContext(ctx).Debugf("closing %s", c.name)
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	if s.database != nil {
		if err := s.database.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
