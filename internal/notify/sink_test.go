package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-hive/hivewatch/internal/notify/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func TestMulti_Notify(t *testing.T) {
	ctx := context.Background()
	var got []string
	ok := SinkFunc(func(_ context.Context, n model.Notification) error {
		got = append(got, n.Message)
		return nil
	})
	failing := SinkFunc(func(context.Context, model.Notification) error {
		return errors.New("broker down")
	})

	err := Multi{ok, nil, failing, Log{}, ok}.Notify(ctx, model.NewNotification("hive-1", model.SeverityInfo, "hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, []string{"hello", "hello"}, got)
}

type fakeToken struct {
	done    bool
	err     error
	closeCh chan struct{}
}

func (t *fakeToken) Wait() bool                     { return t.done }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Done() <-chan struct{}          { return t.closeCh }
func (t *fakeToken) Error() error                   { return t.err }

type publication struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	token        *fakeToken
	published    []publication
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.published = append(p.published, publication{topic: topic, qos: qos, payload: payload.([]byte)})
	return p.token
}

func (p *fakePublisher) Disconnect(uint) {
	p.disconnected = true
}

func TestMQTT_Notify(t *testing.T) {
	tests := []struct {
		name    string
		token   *fakeToken
		wantErr string
	}{
		{name: "published", token: &fakeToken{done: true}},
		{name: "timeout", token: &fakeToken{}, wantErr: "timed out"},
		{name: "broker_error", token: &fakeToken{done: true, err: errors.New("not authorized")}, wantErr: "not authorized"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{token: tt.token}
			sink := NewMQTT(pub, &MQTTConfig{TopicPrefix: "apiary/", QoS: 1, PublishTimeout: time.Millisecond})
			n := model.NewNotification("hive-7", model.SeverityWarning, "lid open on %s", "hive-7")

			err := sink.Notify(context.Background(), n)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			require.Len(t, pub.published, 1)
			assert.Equal(t, "apiary/warning", pub.published[0].topic)
			assert.Equal(t, byte(1), pub.published[0].qos)
			var decoded model.Notification
			require.NoError(t, json.Unmarshal(pub.published[0].payload, &decoded))
			assert.Equal(t, n.ID, decoded.ID)
			assert.Equal(t, "hive-7", decoded.EntityID)

			sink.Close()
			assert.True(t, pub.disconnected)
		})
	}
}
