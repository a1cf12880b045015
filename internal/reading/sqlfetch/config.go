package sqlfetch

type Config struct {
	DSN      string `envconfig:"HIVEWATCH_FETCH_DSN"`
	MaxConns int    `envconfig:"HIVEWATCH_FETCH_MAX_CONNS" default:"4"`
}
