package notify

import (
	"encoding/json"
	"time"

	"github.com/go-hive/hivewatch/internal/httputil"
	"github.com/go-hive/hivewatch/internal/notify/model"
)

type Config struct {
	AllowWebhooks        bool          `envconfig:"HIVEWATCH_NOTIFY_ALLOW_WEBHOOKS" default:"true"`
	Targets              Targets       `envconfig:"HIVEWATCH_NOTIFY_TARGETS"`
	Interval             time.Duration `envconfig:"HIVEWATCH_NOTIFY_INTERVAL" default:"5s"`
	Jitter               time.Duration `envconfig:"HIVEWATCH_NOTIFY_JITTER" default:"500ms"`
	RequestTimeout       time.Duration `envconfig:"HIVEWATCH_NOTIFY_REQUEST_TIMEOUT" default:"10s"`
	MaxConcurrentRequest int           `envconfig:"HIVEWATCH_NOTIFY_MAX_CONCURRENT_REQUEST" default:"8"`
	SigningKey           string        `envconfig:"HIVEWATCH_NOTIFY_SIGNING_KEY"`
}

type Targets []Target

func (ts *Targets) Decode(value string) error {
	targets := []Target{}
	if err := json.Unmarshal([]byte(value), &targets); err != nil {
		return err
	}
	*ts = targets
	return nil
}

// Target is a webhook endpoint. Notifications below MinSeverity are not sent to it.
type Target struct {
	Name        string                    `json:"name"`
	URL         string                    `json:"url"`
	MinSeverity model.Severity            `json:"minSeverity"`
	HTTPConfig  httputil.HTTPClientConfig `json:"httpConfig"`
}

type MQTTConfig struct {
	Broker         string        `envconfig:"HIVEWATCH_MQTT_BROKER"`
	ClientID       string        `envconfig:"HIVEWATCH_MQTT_CLIENT_ID" default:"hivewatch"`
	Username       string        `envconfig:"HIVEWATCH_MQTT_USERNAME"`
	Password       string        `envconfig:"HIVEWATCH_MQTT_PASSWORD"`
	TopicPrefix    string        `envconfig:"HIVEWATCH_MQTT_TOPIC_PREFIX" default:"hivewatch/notifications"`
	QoS            byte          `envconfig:"HIVEWATCH_MQTT_QOS" default:"1"`
	PublishTimeout time.Duration `envconfig:"HIVEWATCH_MQTT_PUBLISH_TIMEOUT" default:"5s"`
}
