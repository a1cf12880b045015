package surveillance

import "time"

type Config struct {
	Interval time.Duration `envconfig:"HIVEWATCH_POLL_INTERVAL" default:"30s"`
}
