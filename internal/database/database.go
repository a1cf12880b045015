package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-hive/hivewatch/internal/logging"
	bolt "go.etcd.io/bbolt"
)

type DB struct {
	DB *bolt.DB
}

func NewFromEnv(ctx context.Context, config *Config) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening bolt file %s", config.FileName)

	db, err := Open(config.FileName, config.OpenTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating connection Db: %w", err)
	}

	return db, nil
}

// Open opens (or creates) the bolt file at path. A zero timeout waits forever for the file lock.
func Open(path string, timeout time.Duration) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

func (db *DB) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("closing DB connection")

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("error close Db connection: %w", err)
	}

	return nil
}
