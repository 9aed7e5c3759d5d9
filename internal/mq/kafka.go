// Package mq publishes risk alerts to Kafka and reads them back.
package mq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/talgya/crowdwatch/internal/risk"
)

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 250 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        time.Second,
	})
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AlertPublisher is an alert sink that writes one message per alert, keyed
// by zone id so a zone's alerts stay ordered within a partition.
type AlertPublisher struct {
	w MessageWriter
}

func NewAlertPublisher(w MessageWriter) *AlertPublisher {
	return &AlertPublisher{w: w}
}

// AlertMessages encodes alerts as Kafka messages.
func AlertMessages(alerts []risk.Alert) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		body, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.Itoa(a.ZoneID)),
			Value: body,
			Time:  a.CreatedAt.UTC(),
			Headers: []kafka.Header{
				{Key: "severity", Value: []byte(a.Severity)},
			},
		})
	}
	return msgs, nil
}

// Record implements the monitor's alert sink.
func (p *AlertPublisher) Record(ctx context.Context, alerts []risk.Alert) error {
	msgs, err := AlertMessages(alerts)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *AlertPublisher) Close() error {
	return p.w.Close()
}

func ParseMessageJSON[T any](msg kafka.Message) (T, error) {
	var payload T
	err := json.Unmarshal(msg.Value, &payload)
	return payload, err
}
