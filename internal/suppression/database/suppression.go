package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	bolt "go.etcd.io/bbolt"
)

const bucket = "suppression"

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

// DB persists the suppression rule list as one JSON document in the service bolt file.
type DB struct {
	sDB *database.DB
}

func (db *DB) Load(_ context.Context) ([]model.Rule, error) {
	var rules []model.Rule
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(model.StorageKey))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rules); err != nil {
			return fmt.Errorf("suppression rules unmarshal error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return rules, nil
}

func (db *DB) Save(_ context.Context, rules []model.Rule) error {
	bytes, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if err := b.Put([]byte(model.StorageKey), bytes); err != nil {
			return fmt.Errorf("put to bucket error: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}
