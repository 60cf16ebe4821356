package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"climate-api/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DatasetLoaded is published by the external loader after it has replaced
// the station and measurement tables.
type DatasetLoaded struct {
	Dataset  string    `json:"dataset"`
	LoadedAt time.Time `json:"loaded_at"`
}

type Subscriber struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu      sync.RWMutex
	messageHandler func(msg DatasetLoaded) error
}

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetMessageHandler(handler func(msg DatasetLoaded) error)
}

// SetMessageHandler sets the handler called for each valid dataset notification.
func (s *Subscriber) SetMessageHandler(handler func(msg DatasetLoaded) error) {
	s.handlerMu.Lock()
	s.messageHandler = handler
	s.handlerMu.Unlock()
}

func NewSubscriber(cfg config.Config, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Resubscribe on every (re)connect; clean sessions drop subscriptions.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", cfg.MQTTTopic, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the broker connection. Subscription happens in the
// on-connect callback.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

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
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe() error {
	topic := s.cfg.MQTTTopic
	qos := byte(1)

	token := s.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	msg, err := parseDatasetLoaded(payload)
	if err != nil {
		s.logger.Warn("invalid dataset notification",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	s.handlerMu.RLock()
	handler := s.messageHandler
	s.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler(msg); err != nil {
		s.logger.Error("message handler failed",
			"topic", topic,
			"dataset", msg.Dataset,
			"error", err,
		)
	}
}

func parseDatasetLoaded(payload []byte) (DatasetLoaded, error) {
	var msg DatasetLoaded
	if err := json.Unmarshal(payload, &msg); err != nil {
		return DatasetLoaded{}, fmt.Errorf("decode: %w", err)
	}
	if msg.Dataset == "" {
		return DatasetLoaded{}, fmt.Errorf("dataset is required")
	}
	if msg.LoadedAt.IsZero() {
		return DatasetLoaded{}, fmt.Errorf("loaded_at is required")
	}
	return msg, nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Safe to call more than once.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTTopic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
