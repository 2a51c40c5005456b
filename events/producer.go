package events

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"cashback_bot/models"
)

const (
	TicketCreated       = "ticket.created"
	TicketStatusChanged = "ticket.status_changed"
)

// writeTimeout bounds one Publish so an unreachable cluster cannot stall the
// caller's worker.
const writeTimeout = 3 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TicketEvent is the message body written to the topic.
type TicketEvent struct {
	Event      string    `json:"event"`
	Code       string    `json:"code"`
	Status     string    `json:"status"`
	CasinoCode string    `json:"casino_code"`
	UserTgID   int64     `json:"user_tg_id,omitempty"`
	ReferrerID *uint     `json:"referrer_id,omitempty"`
	At         time.Time `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет события заявок в Kafka. Без брокеров все методы no-op.
type Producer struct {
	writer  messageWriter
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	p := &Producer{log: log, now: time.Now, timeout: writeTimeout}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
	return p
}

func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// Publish sends one event keyed by ticket code so a ticket's events keep
// their order within a partition. Failures are logged only.
func (p *Producer) Publish(ctx context.Context, event string, t *models.Ticket) {
	if p.writer == nil || t == nil {
		return
	}
	ev := TicketEvent{
		Event:      event,
		Code:       t.Code,
		Status:     string(t.Status),
		CasinoCode: t.CasinoCode,
		UserTgID:   t.User.TgID,
		ReferrerID: t.ReferrerID,
		At:         p.now(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("Failed to marshal ticket event", zap.String("event", event), zap.Error(err))
		return
	}
	timeout := p.timeout
	if timeout <= 0 {
		timeout = writeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(t.Code), Value: body}); err != nil {
		p.log.Warn("Failed to write ticket event",
			zap.String("event", event),
			zap.String("ticket", t.Code),
			zap.Error(err),
		)
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
