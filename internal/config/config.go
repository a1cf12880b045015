// Package config aggregates the environment configuration of the hivewatch service.
package config

import (
	"github.com/go-hive/hivewatch/internal/api"
	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/notify"
	"github.com/go-hive/hivewatch/internal/observability"
	"github.com/go-hive/hivewatch/internal/reading/httpfetch"
	"github.com/go-hive/hivewatch/internal/reading/sqlfetch"
	"github.com/go-hive/hivewatch/internal/setup"
	"github.com/go-hive/hivewatch/internal/suppression/redisstore"
	"github.com/go-hive/hivewatch/internal/surveillance"
	"github.com/go-hive/hivewatch/internal/watchlist"
)

var (
	_ setup.DatabaseConfigProvider    = (*Config)(nil)
	_ setup.FetcherConfigProvider     = (*Config)(nil)
	_ setup.SuppressionConfigProvider = (*Config)(nil)
	_ setup.NotifierConfigProvider    = (*Config)(nil)
)

type Config struct {
	SrvAddr                string `envconfig:"HIVEWATCH_ADDR" default:":8787"`
	GRPCAddr               string `envconfig:"HIVEWATCH_GRPC_ADDR" default:":8788"`
	FetchModeType          string `envconfig:"HIVEWATCH_FETCH_MODE" default:"http"`
	SuppressionBackendType string `envconfig:"HIVEWATCH_SUPPRESSION_BACKEND" default:"bolt"`

	Database      database.Config
	HTTPFetch     httpfetch.Config
	SQLFetch      sqlfetch.Config
	Redis         redisstore.Config
	Surveillance  surveillance.Config
	Notify        notify.Config
	MQTT          notify.MQTTConfig
	API           api.Config
	Watchlist     watchlist.Config
	Observability observability.Config
}

func (c *Config) DatabaseConfig() *database.Config {
	return &c.Database
}

func (c *Config) FetchMode() string {
	return c.FetchModeType
}

func (c *Config) HTTPFetchConfig() *httpfetch.Config {
	return &c.HTTPFetch
}

func (c *Config) SQLFetchConfig() *sqlfetch.Config {
	return &c.SQLFetch
}

func (c *Config) SuppressionBackend() string {
	return c.SuppressionBackendType
}

func (c *Config) RedisConfig() *redisstore.Config {
	return &c.Redis
}

func (c *Config) NotifyConfig() *notify.Config {
	return &c.Notify
}

func (c *Config) MQTTConfig() *notify.MQTTConfig {
	return &c.MQTT
}
