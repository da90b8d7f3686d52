// Package sink forwards accepted readings to downstream systems.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each reading as JSON on one topic.
type MQTT struct {
	client  mqttClient
	topic   string
	timeout time.Duration
}

// NewMQTT returns a publisher whose acknowledgement wait is bounded by
// timeout. A zero timeout waits for as long as ctx allows.
func NewMQTT(client mqtt.Client, topic string, timeout time.Duration) *MQTT {
	return &MQTT{client: client, topic: topic, timeout: timeout}
}

// Connect dials broker and blocks until the session is up.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

func (m *MQTT) Publish(ctx context.Context, r domain.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	token := m.client.Publish(m.topic, 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", m.topic, ctx.Err())
	}
}

// DecodeReading parses a payload written by Publish.
func DecodeReading(payload []byte) (domain.Reading, error) {
	var r domain.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return r, fmt.Errorf("%w: %v", domain.ErrInvalidReading, err)
	}
	if r.MeterID == "" {
		return r, fmt.Errorf("%w: payload has no meter_id", domain.ErrInvalidReading)
	}
	return r, nil
}

// Subscribe delivers every decodable reading on topic to fn.
func Subscribe(client mqtt.Client, topic string, fn func(domain.Reading), onErr func(error)) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		r, err := DecodeReading(msg.Payload())
		if err != nil {
			onErr(err)
			return
		}
		fn(r)
	}
	if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}
