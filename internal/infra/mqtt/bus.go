package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"home-hub/internal/application"
	"home-hub/internal/infra"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 10 * time.Second
	inboxSize      = 64
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Topics   application.Topics
	Retry    infra.RetryConfig
	// PublishTimeout bounds how long Publish waits for the broker to
	// acknowledge. Zero means publishTimeout.
	PublishTimeout time.Duration
}

// MessageHandler receives every message arriving on a subscribed topic.
type MessageHandler interface {
	HandleMessage(ctx context.Context, topic string, payload []byte)
}

type inbound struct {
	topic   string
	payload []byte
}

// Bus is the MQTT connection shared by the hub: it publishes relay and audio
// commands and forwards inbound traffic to a MessageHandler.
//
// paho routes messages in order on the goroutine that also reads acks, so
// callbacks must not block. Voice traffic is cheap and handled inline to keep
// audio ordered. Device reports may wait on the executor and go through inbox
// to a single delivery goroutine instead.
type Bus struct {
	cfg    Config
	logger *slog.Logger
	inbox  chan inbound

	mu      sync.RWMutex
	client  paho.Client
	handler MessageHandler
	ctx     context.Context
}

func NewBus(cfg Config, logger *slog.Logger) *Bus {
	if cfg.ClientID == "" {
		cfg.ClientID = "home-hub"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = infra.DefaultRetryConfig()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = publishTimeout
	}
	return &Bus{cfg: cfg, logger: logger, inbox: make(chan inbound, inboxSize), ctx: context.Background()}
}

// Subscriptions returns the topic filters the hub listens on with their QoS.
func Subscriptions(topics application.Topics, qos byte) map[string]byte {
	return map[string]byte{
		topics.Status:                   qos,
		topics.Motion:                   qos,
		topics.Discovery:                qos,
		topics.VoiceCommandPrefix + "#": qos,
		topics.VoiceAudioPrefix + "#":   qos,
	}
}

// Connect dials the broker, retrying with backoff, and routes inbound
// messages to handler. Subscriptions are renewed on every reconnect.
func (b *Bus) Connect(ctx context.Context, handler MessageHandler) error {
	b.mu.Lock()
	b.handler = handler
	b.ctx = ctx
	b.mu.Unlock()

	go b.deliver(ctx)

	client := paho.NewClient(b.clientOptions())
	err := infra.WithRetry(ctx, b.cfg.Retry, func() error {
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("timed out after %s", connectTimeout)
		}
		return token.Error()
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", b.cfg.Broker, err)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	return nil
}

func (b *Bus) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			b.logger.Warn("MQTT connection lost", "error", err)
		}).
		SetDefaultPublishHandler(b.onMessage)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	return opts
}

func (b *Bus) onConnect(client paho.Client) {
	filters := Subscriptions(b.cfg.Topics, b.cfg.QoS)
	token := client.SubscribeMultiple(filters, b.onMessage)
	if token.WaitTimeout(connectTimeout) && token.Error() == nil {
		b.logger.Info("connected to MQTT broker", "broker", b.cfg.Broker, "subscriptions", len(filters))
		return
	}
	b.logger.Error("subscribing to hub topics", "error", token.Error())
}

func (b *Bus) onMessage(_ paho.Client, msg paho.Message) {
	b.mu.RLock()
	handler, ctx := b.handler, b.ctx
	b.mu.RUnlock()

	if handler == nil {
		return
	}
	if isVoiceTopic(b.cfg.Topics, msg.Topic()) {
		handler.HandleMessage(ctx, msg.Topic(), msg.Payload())
		return
	}

	b.logger.Debug("message received", "topic", msg.Topic(), "payload", string(msg.Payload()))
	select {
	case b.inbox <- inbound{topic: msg.Topic(), payload: msg.Payload()}:
	case <-ctx.Done():
	}
}

// deliver hands queued device reports to the handler in arrival order.
func (b *Bus) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-b.inbox:
			b.mu.RLock()
			handler := b.handler
			b.mu.RUnlock()
			if handler != nil {
				handler.HandleMessage(ctx, m.topic, m.payload)
			}
		}
	}
}

// Publish sends payload to the control topic.
func (b *Bus) Publish(ctx context.Context, payload string) error {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("publishing %q: not connected", payload)
	}

	timer := time.NewTimer(b.cfg.PublishTimeout)
	defer timer.Stop()

	token := client.Publish(b.cfg.Topics.Control, b.cfg.QoS, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publishing %q: no acknowledgement after %s", payload, b.cfg.PublishTimeout)
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing %q: %w", payload, err)
	}
	b.logger.Debug("published", "topic", b.cfg.Topics.Control, "payload", payload)
	return nil
}

func (b *Bus) Close() {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

func isVoiceTopic(topics application.Topics, topic string) bool {
	return strings.HasPrefix(topic, topics.VoiceAudioPrefix) || strings.HasPrefix(topic, topics.VoiceCommandPrefix)
}
