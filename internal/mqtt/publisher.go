package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"climate-api/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher announces dataset loads; climatectl uses it after seeding.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID + "-loader")
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)

	return &Publisher{
		client: mqtt.NewClient(opts),
		topic:  cfg.MQTTTopic,
		logger: logger,
	}
}

// Connect waits for the broker connection or ctx.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
}

func (p *Publisher) PublishDatasetLoaded(msg DatasetLoaded) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := encodeDatasetLoaded(msg)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish dataset loaded: %w", token.Error())
	}

	p.logger.Info("published dataset notification", "topic", p.topic, "dataset", msg.Dataset)
	return nil
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

func encodeDatasetLoaded(msg DatasetLoaded) ([]byte, error) {
	if msg.Dataset == "" {
		return nil, fmt.Errorf("dataset is required")
	}
	if msg.LoadedAt.IsZero() {
		msg.LoadedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal dataset loaded: %w", err)
	}
	return data, nil
}
