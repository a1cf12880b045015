package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/notify/model"
	bolt "go.etcd.io/bbolt"
)

const (
	targetKeys = "outbox:keys:"
	prefix     = "outbox:"
)

type FilterFn func(batch model.Batch) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

// DB keeps undelivered webhook batches, one bucket per target.
type DB struct {
	sDB *database.DB
}

func (db *DB) Store(_ context.Context, batch model.Batch) error {
	bytes, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(prefix + batch.Target))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if err := b.Put([]byte(batch.ID.String()), bytes); err != nil {
			return fmt.Errorf("put to bucket error: %w", err)
		}
		keys, err := tx.CreateBucketIfNotExists([]byte(targetKeys))
		if err != nil {
			return fmt.Errorf("unable create targets bucket: %w", err)
		}
		if err := keys.Put([]byte(prefix+batch.Target), []byte{0x0}); err != nil {
			return fmt.Errorf("unable put to targets bucket: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) Delete(_ context.Context, batch model.Batch) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + batch.Target))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(batch.ID.String()))
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Batch, error) {
	var batches []model.Batch
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keys := tx.Bucket([]byte(targetKeys))
		if keys == nil {
			return nil
		}
		return keys.ForEach(func(k, _ []byte) error {
			b := tx.Bucket(k)
			if b == nil {
				return nil
			}
			return b.ForEach(func(_, v []byte) error {
				var batch model.Batch
				if err := json.Unmarshal(v, &batch); err != nil {
					return fmt.Errorf("outbox unmarshal error: %w", err)
				}
				if filter == nil || filter(batch) {
					batches = append(batches, batch)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return batches, nil
}
