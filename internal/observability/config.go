package observability

type Config struct {
	Namespace string `envconfig:"HIVEWATCH_METRICS_NAMESPACE" default:"hivewatch"`
}
