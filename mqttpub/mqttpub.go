package mqttpub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Publisher sends retained JSON messages below a topic prefix, e.g. "spotwindow/price/current".
type Publisher struct {
	client mqtt.Client
	logger *slog.Logger
	prefix string
}

func New(broker string, port int16, username, password, prefix string) *Publisher {
	logger := slog.Default().With("module", "mqttpub")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(fmt.Sprintf("spotwindow-%d", time.Now().UnixNano()%1e6))
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLogger := slog.Default().With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLogger, slog.LevelWarn)

	return &Publisher{
		client: mqtt.NewClient(opts),
		logger: logger,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	token := p.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// connect retry keeps going in the background
		p.logger.Warn("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	return token.Error()
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// Publish marshals payload to JSON and sends it retained with QoS 1.
func (p *Publisher) Publish(topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	full := p.Topic(topic)
	token := p.client.Publish(full, 1, true, b)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out after %s", full, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	return nil
}

func (p *Publisher) Topic(topic string) string {
	topic = strings.Trim(topic, "/")
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "/" + topic
}
