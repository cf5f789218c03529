package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aradaody/defi-technique/internal/config"
)

// mqttPublisher the part of mqtt.Client used here.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes events as JSON on a topic.
type MQTTNotifier struct {
	client mqttPublisher
	topic  string
	qos    byte
}

// NewMQTTNotifier connects to the broker.
func NewMQTTNotifier(cfg *config.NotifyConfig) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTNotifier(client, cfg.MQTTTopic, byte(cfg.MQTTQoS)), nil
}

func newMQTTNotifier(client mqttPublisher, topic string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, qos: qos}
}

func (n *MQTTNotifier) Name() string { return "mqtt" }

func (n *MQTTNotifier) Notify(ctx context.Context, event *BatchCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	token := n.client.Publish(n.topic, n.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", n.topic, err)
	}
	return nil
}

func (n *MQTTNotifier) Close() error {
	n.client.Disconnect(250)
	return nil
}
