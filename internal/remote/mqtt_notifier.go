package remote

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"kidpoints/internal/config"
	"kidpoints/internal/models"
)

const mqttQoS byte = 1

// MQTTNotifier fans out record updates through an MQTT broker
type MQTTNotifier struct {
	client mqtt.Client
	prefix string
	logger *zap.Logger
}

// NewMQTTNotifier connects to the configured broker
func NewMQTTNotifier(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTNotifier{client: client, prefix: cfg.TopicPrefix, logger: logger}, nil
}

func (n *MQTTNotifier) topic(familyID string) string {
	return mqttTopic(n.prefix, familyID)
}

func mqttTopic(prefix, familyID string) string {
	if prefix == "" {
		return "families/" + familyID
	}
	return prefix + "/families/" + familyID
}

func (n *MQTTNotifier) Publish(_ context.Context, rec models.FamilyRecord) error {
	payload, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	token := n.client.Publish(n.topic(rec.ID), mqttQoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", n.topic(rec.ID), token.Error())
	}
	return nil
}

func (n *MQTTNotifier) Subscribe(_ context.Context, familyID string, handler Handler) (func(), error) {
	topic := n.topic(familyID)
	if token := n.client.Subscribe(topic, mqttQoS, messageHandler(familyID, handler, n.logger)); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return func() {
		token := n.client.Unsubscribe(topic)
		token.Wait()
		if token.Error() != nil {
			n.logger.Debug("Failed to unsubscribe", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}, nil
}

func messageHandler(familyID string, handler Handler, logger *zap.Logger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		rec, err := DecodeRecord(msg.Payload())
		if rec == nil {
			logger.Warn("Dropping undecodable family update", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		if err != nil {
			logger.Warn("Ignoring malformed kids payload", zap.String("family_id", familyID), zap.Error(err))
		}
		handler(*rec)
	}
}

func (n *MQTTNotifier) Close() error {
	n.client.Disconnect(250)
	return nil
}
