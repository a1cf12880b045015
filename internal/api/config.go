package api

import "time"

type Config struct {
	RequestTimeout time.Duration `envconfig:"HIVEWATCH_API_REQUEST_TIMEOUT" default:"10s"`
	EventBuffer    int           `envconfig:"HIVEWATCH_API_EVENT_BUFFER" default:"32"`
	EventKeepAlive time.Duration `envconfig:"HIVEWATCH_API_EVENT_KEEPALIVE" default:"15s"`
}
