package redisstore

type Config struct {
	Addr     string `envconfig:"HIVEWATCH_REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"HIVEWATCH_REDIS_PASSWORD"`
	DB       int    `envconfig:"HIVEWATCH_REDIS_DB" default:"0"`
}
