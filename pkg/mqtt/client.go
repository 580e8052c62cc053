package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/guardian-platform/pkg/config"
)

const publishTimeout = 10 * time.Second

// pahoClient implements Client on top of the Paho MQTT client
type pahoClient struct {
	client pahomqtt.Client
	broker string
	logger *slog.Logger
}

// NewClient creates a new MQTT client with the given configuration
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	broker := cfg.MQTTAddress()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// Per-user ordering is enforced by the engine lock, not by paho
	opts.SetOrderMatters(false)

	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}
	opts.OnReconnecting = func(c pahomqtt.Client, opts *pahomqtt.ClientOptions) {
		logger.Info("MQTT reconnecting")
	}

	return &pahoClient{
		client: pahomqtt.NewClient(opts),
		broker: broker,
		logger: logger,
	}
}

// Connect establishes a connection to the MQTT broker
func (m *pahoClient) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MQTT broker", "broker", m.broker)

	token := m.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect closes the connection to the MQTT broker
func (m *pahoClient) Disconnect() {
	m.logger.Info("Disconnecting from MQTT broker")
	m.client.Disconnect(250)
}

// Subscribe subscribes to a topic with the given QoS and handler
func (m *pahoClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := m.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(&pahoMessage{msg: msg})
	})
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	m.logger.Info("Subscribed to MQTT topic", "topic", topic, "qos", qos)
	return nil
}

// Publish publishes a message to a topic, giving up after publishTimeout
func (m *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	m.logger.Debug("Published message", "topic", topic, "size", len(payload))
	return nil
}

// IsConnected returns whether the client is currently connected
func (m *pahoClient) IsConnected() bool {
	return m.client.IsConnected()
}

type pahoMessage struct {
	msg pahomqtt.Message
}

func (m *pahoMessage) Topic() string   { return m.msg.Topic() }
func (m *pahoMessage) Payload() []byte { return m.msg.Payload() }
func (m *pahoMessage) Ack()            { m.msg.Ack() }
