// Package audit publishes security-relevant auth events.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Event types.
const (
	TypeLoginSucceeded = "auth.login.succeeded"
	TypeLoginFailed    = "auth.login.failed"
	TypeRegistered     = "auth.registered"
	TypeLoggedOut      = "auth.logged_out"
	TypeClientBlocked  = "auth.client_blocked"
)

// Event is a single entry of the auth audit trail.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	ClientID  string    `json:"clientId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher records audit events. Publishing is best-effort from the
// caller's point of view; failures must not fail the user request.
type Publisher interface {
	Publish(event Event) error
}

// KafkaPublisher sends events as JSON to a Kafka topic.
type KafkaPublisher struct {
	Producer sarama.SyncProducer
	Topic    string
	Log      *zap.Logger
}

// Publish sends one event to Kafka.
func (p *KafkaPublisher) Publish(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	buf, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	_, _, err = p.Producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.Topic,
		Key:   sarama.StringEncoder(event.Type),
		Value: sarama.ByteEncoder(buf),
	})
	if err != nil {
		return fmt.Errorf("failed to send audit event: %w", err)
	}
	p.Log.Debug("Published audit event", zap.String("type", event.Type))
	return nil
}

// Assert KafkaPublisher implements Publisher.
var _ Publisher = (*KafkaPublisher)(nil)

// LogPublisher writes events to the service log only.
// Used when no Kafka brokers are configured.
type LogPublisher struct {
	Log *zap.Logger
}

// Publish logs one event.
func (p *LogPublisher) Publish(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	p.Log.Info("Audit event",
		zap.String("type", event.Type),
		zap.String("user_id", event.UserID),
		zap.String("client_id", event.ClientID),
		zap.String("detail", event.Detail))
	return nil
}

// Assert LogPublisher implements Publisher.
var _ Publisher = (*LogPublisher)(nil)
