// Package setup processes the environment configuration and prepares the collaborators of
// the service.
package setup

import (
	"context"
	"fmt"

	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/notify"
	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-hive/hivewatch/internal/reading/httpfetch"
	"github.com/go-hive/hivewatch/internal/reading/sqlfetch"
	"github.com/go-hive/hivewatch/internal/srvenv"
	suppressionDb "github.com/go-hive/hivewatch/internal/suppression/database"
	"github.com/go-hive/hivewatch/internal/suppression/redisstore"
	"github.com/kelseyhightower/envconfig"
)

const (
	FetchModeHTTP = "http"
	FetchModeSQL  = "sql"

	SuppressionBackendBolt  = "bolt"
	SuppressionBackendRedis = "redis"
)

type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

type FetcherConfigProvider interface {
	FetchMode() string
	HTTPFetchConfig() *httpfetch.Config
	SQLFetchConfig() *sqlfetch.Config
}

type SuppressionConfigProvider interface {
	SuppressionBackend() string
	RedisConfig() *redisstore.Config
}

type NotifierConfigProvider interface {
	NotifyConfig() *notify.Config
	MQTTConfig() *notify.MQTTConfig
}

// Setup loads config from the environment and returns the service environment. Call Close on
// the result when it is no longer needed, also on error paths after Setup succeeded.
func Setup(ctx context.Context, config interface{}) (*srvenv.SrvEnv, error) {
	logger := logging.FromContext(ctx)
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var (
		serverEnvOpts []srvenv.Option
		db            *database.DB
	)
	fail := func(err error) (*srvenv.SrvEnv, error) {
		if closeErr := srvenv.New(serverEnvOpts...).Close(ctx); closeErr != nil {
			logger.Errorf("release partially configured environment: %v", closeErr)
		}
		return nil, err
	}

	if provider, ok := config.(DatabaseConfigProvider); ok {
		logger.Info("Configuring db")
		dbFromEnv, err := database.NewFromEnv(ctx, provider.DatabaseConfig())
		if err != nil {
			return fail(fmt.Errorf("unable to open database: %w", err))
		}
		db = dbFromEnv
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDatabase(db))
	}

	if provider, ok := config.(FetcherConfigProvider); ok {
		logger.Infof("Configuring %s reading fetcher", provider.FetchMode())
		fetcher, closer, err := ProvideFetcherFor(provider)
		if err != nil {
			return fail(fmt.Errorf("unable create reading fetcher: %w", err))
		}
		serverEnvOpts = append(serverEnvOpts, srvenv.WithFetcher(fetcher))
		if closer != nil {
			serverEnvOpts = append(serverEnvOpts, srvenv.WithCloser("sql fetcher", closer))
		}
	}

	if provider, ok := config.(SuppressionConfigProvider); ok {
		logger.Infof("Configuring %s suppression backend", provider.SuppressionBackend())
		opts, err := ProvidePersisterFor(provider, db)
		if err != nil {
			return fail(fmt.Errorf("unable create suppression persister: %w", err))
		}
		serverEnvOpts = append(serverEnvOpts, opts...)
	}

	if provider, ok := config.(NotifierConfigProvider); ok {
		logger.Info("Configuring notifications")
		provideFn, err := ProvideNotifierFor(provider, db)
		if err != nil {
			return fail(fmt.Errorf("unable create notifier provide function: %w", err))
		}
		serverEnvOpts = append(serverEnvOpts, srvenv.WithNotifier(provideFn))

		if mqttCfg := provider.MQTTConfig(); mqttCfg.Broker != "" {
			sink, err := notify.DialMQTT(mqttCfg)
			if err != nil {
				return fail(fmt.Errorf("unable connect mqtt sink: %w", err))
			}
			serverEnvOpts = append(serverEnvOpts, srvenv.WithMQTT(sink))
		}
	}

	return srvenv.New(serverEnvOpts...), nil
}

// ProvideFetcherFor returns the fetcher selected by the fetch mode and, for SQL, the func that
// closes its pool.
func ProvideFetcherFor(provider FetcherConfigProvider) (reading.Fetcher, func() error, error) {
	switch provider.FetchMode() {
	case FetchModeHTTP, "":
		return httpfetch.New(provider.HTTPFetchConfig()), nil, nil
	case FetchModeSQL:
		f, err := sqlfetch.Open(provider.SQLFetchConfig())
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetch mode: %s", provider.FetchMode())
	}
}

func ProvidePersisterFor(provider SuppressionConfigProvider, db *database.DB) ([]srvenv.Option, error) {
	switch provider.SuppressionBackend() {
	case SuppressionBackendBolt, "":
		if db == nil {
			return nil, fmt.Errorf("bolt suppression backend requires the database")
		}
		return []srvenv.Option{srvenv.WithPersister(suppressionDb.New(db))}, nil
	case SuppressionBackendRedis:
		client := redisstore.NewClient(provider.RedisConfig())
		return []srvenv.Option{
			srvenv.WithPersister(redisstore.New(client)),
			srvenv.WithCloser("redis", client.Close),
			srvenv.WithHealthCheck("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}),
		}, nil
	default:
		return nil, fmt.Errorf("unknown suppression backend: %s", provider.SuppressionBackend())
	}
}

// ProvideNotifierFor returns nil when webhooks are disabled.
func ProvideNotifierFor(provider NotifierConfigProvider, db *database.DB) (notify.ProvideFn, error) {
	cfg := provider.NotifyConfig()
	if !cfg.AllowWebhooks || len(cfg.Targets) == 0 {
		return nil, nil
	}
	if db == nil {
		return nil, fmt.Errorf("webhook outbox requires the database")
	}
	return func(shutdownCh chan<- error) (notify.Manager, error) {
		return notify.New(
			db,
			shutdownCh,
			notify.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			notify.WithInterval(cfg.Interval),
			notify.WithJitter(cfg.Jitter),
			notify.WithRequestTimeout(cfg.RequestTimeout),
			notify.WithSigningKey(cfg.SigningKey),
			notify.WithTargets(cfg.Targets),
		)
	}, nil
}
