package httpfetch

import "time"

type Config struct {
	BaseURL     string        `envconfig:"HIVEWATCH_FETCH_URL" default:"http://localhost:8080"`
	BearerToken string        `envconfig:"HIVEWATCH_FETCH_TOKEN"`
	Timeout     time.Duration `envconfig:"HIVEWATCH_FETCH_TIMEOUT" default:"10s"`
}
