// Package events publishes per-task dispatch outcomes to RabbitMQ for
// downstream consumers (reporting, webhooks). Publishing is best-effort: a
// broker outage never affects dispatch.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const outcomeQueue = "task_outcomes"

type TaskEvent struct {
	EventID    string    `json:"event_id"`
	CampaignID int       `json:"campaign_id"`
	TaskID     int       `json:"task_id"`
	Phone      string    `json:"phone"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		outcomeQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, logger: logger}, nil
}

// Publish emits one outcome event. Errors are logged and swallowed.
func (p *Publisher) Publish(ev TaskEvent) {
	if p == nil {
		return
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("marshal task event", zap.Error(err))
		return
	}

	err = p.ch.Publish("", outcomeQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("publish task event", zap.Int("task_id", ev.TaskID), zap.Error(err))
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.ch.Close()
	p.conn.Close()
}
