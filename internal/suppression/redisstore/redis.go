// Package redisstore persists suppression rules in redis so several clients can share them.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davecgh/go-xdr/xdr2"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// KV is the subset of the redis client used by the store.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

type Store struct {
	kv KV
}

func (s *Store) Load(ctx context.Context) ([]model.Rule, error) {
	raw, err := s.kv.Get(ctx, model.StorageKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", model.StorageKey, err)
	}
	return Decode(raw)
}

func (s *Store) Save(ctx context.Context, rules []model.Rule) error {
	if len(rules) == 0 {
		if err := s.kv.Del(ctx, model.StorageKey).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", model.StorageKey, err)
		}
		return nil
	}
	raw, err := Encode(rules)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, model.StorageKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", model.StorageKey, err)
	}
	return nil
}

type wireRule struct {
	ID         string
	EntityID   string
	CreatedAt  int64
	DurationMs int64
	Kind       uint32
}

type wireRules struct {
	Rules []wireRule
}

// Encode serializes rules as XDR.
func Encode(rules []model.Rule) ([]byte, error) {
	w := wireRules{Rules: make([]wireRule, len(rules))}
	for i, r := range rules {
		w.Rules[i] = wireRule{
			ID:         r.ID.String(),
			EntityID:   r.EntityID,
			CreatedAt:  r.CreatedAt,
			DurationMs: r.DurationMs,
			Kind:       uint32(r.Kind),
		}
	}
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &w); err != nil {
		return nil, fmt.Errorf("xdr encode rules: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(raw []byte) ([]model.Rule, error) {
	var w wireRules
	if _, err := xdr.Unmarshal(bytes.NewReader(raw), &w); err != nil {
		return nil, fmt.Errorf("xdr decode rules: %w", err)
	}
	rules := make([]model.Rule, 0, len(w.Rules))
	for _, r := range w.Rules {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.EntityID, err)
		}
		rules = append(rules, model.Rule{
			ID:         id,
			EntityID:   r.EntityID,
			CreatedAt:  r.CreatedAt,
			DurationMs: r.DurationMs,
			Kind:       model.Kind(r.Kind),
		})
	}
	return rules, nil
}
