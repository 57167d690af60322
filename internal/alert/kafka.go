package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	mailTypeAdminAlert     = "ADMIN_ALERT"
	mailTemplateAdminAlert = "ADMIN_ALERT"
)

// MailSendEvent is consumed by the mail service, which resolves an empty
// recipient list to the admin group.
type MailSendEvent struct {
	ServiceName string              `json:"serviceName"`
	Type        string              `json:"type"`
	Recipients  []string            `json:"recipients"`
	Title       string              `json:"title"`
	Contents    map[string][]string `json:"contents"`
	Template    string              `json:"template"`
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes alerts as mail send events.
type KafkaSink struct {
	writer      MessageWriter
	topic       string
	serviceName string
}

// NewKafkaSink creates a sink writing to topic.
func NewKafkaSink(writer MessageWriter, topic, serviceName string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic, serviceName: serviceName}
}

// NewWriter builds the shared producer used by alerts and the outbox relay.
// Topics are set per message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

func (s *KafkaSink) Notify(ctx context.Context, title, message string) error {
	event := MailSendEvent{
		ServiceName: s.serviceName,
		Type:        mailTypeAdminAlert,
		Recipients:  []string{},
		Title:       title,
		Contents:    map[string][]string{"message": {message}},
		Template:    mailTemplateAdminAlert,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(s.serviceName),
		Value: body,
	}); err != nil {
		return fmt.Errorf("publish mail event: %w", err)
	}
	return nil
}
