package database

import "time"

type Config struct {
	FileName    string        `envconfig:"HIVEWATCH_DB_FILE" default:"hivewatch.db"`
	OpenTimeout time.Duration `envconfig:"HIVEWATCH_DB_OPEN_TIMEOUT" default:"5s"`
}
