package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"truthcert/internal/domain"
)

// Message is the body published for every committed custody batch.
type Message struct {
	CertificateID string                `json:"certificateId"`
	Events        []domain.CustodyEvent `json:"events"`
	PublishedAt   time.Time             `json:"publishedAt"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher fans custody events out to a topic exchange. The routing key is
// "custody.<event kind>" of the batch's last event.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	clock    func() time.Time
}

func Dial(url, exchange string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if exchange == "" {
		exchange = "truthcert.custody"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare amqp exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, clock: time.Now}, nil
}

func (p *Publisher) Publish(ctx context.Context, certificateID string, events []domain.CustodyEvent) error {
	if p == nil || p.ch == nil {
		return errors.New("amqp publisher not initialized")
	}
	if len(events) == 0 {
		return nil
	}
	body, err := json.Marshal(Message{
		CertificateID: certificateID,
		Events:        events,
		PublishedAt:   p.clock().UTC(),
	})
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(events[len(events)-1].Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s/%d", certificateID, events[len(events)-1].Seq),
		Timestamp:    p.clock().UTC(),
		Body:         body,
	})
}

// RoutingKey turns "Certificate Revoked" into "custody.certificate_revoked".
func RoutingKey(kind domain.CustodyEventKind) string {
	out := make([]byte, 0, len(kind)+8)
	out = append(out, "custody."...)
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c == ' ':
			out = append(out, '_')
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
