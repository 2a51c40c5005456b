package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"cashback_bot/models"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

type stuckWriter struct{}

func (stuckWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stuckWriter) Close() error { return nil }

func TestProducer_PublishGivesUp(t *testing.T) {
	p := &Producer{writer: stuckWriter{}, log: zap.NewNop(), now: time.Now, timeout: 20 * time.Millisecond}

	done := make(chan struct{})
	go func() {
		p.Publish(context.Background(), TicketCreated, &models.Ticket{Code: "TCK-20261015-0002"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on an unreachable writer")
	}
}

func TestProducer_NoBrokersIsNoop(t *testing.T) {
	p := NewProducer(nil, "cashback.tickets", zap.NewNop())
	if p.Enabled() {
		t.Fatal("producer without brokers must be disabled")
	}
	p.Publish(context.Background(), TicketCreated, &models.Ticket{Code: "TCK-20261015-0001"})
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if NewProducer([]string{"localhost:9092"}, "", zap.NewNop()).Enabled() {
		t.Error("producer without topic must be disabled")
	}
}

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	at := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	p := &Producer{writer: w, log: zap.NewNop(), now: func() time.Time { return at }}

	tk := &models.Ticket{
		Code:       "TCK-20261015-0007",
		Status:     models.StatusApproved,
		CasinoCode: "stake",
		User:       models.User{TgID: 555},
	}
	p.Publish(context.Background(), TicketStatusChanged, tk)
	p.Publish(context.Background(), TicketCreated, nil)

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != tk.Code {
		t.Errorf("key = %q", msg.Key)
	}
	var got TicketEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if got.Event != TicketStatusChanged || got.Status != "approved" || got.UserTgID != 555 || !got.At.Equal(at) {
		t.Errorf("unexpected payload %+v", got)
	}

	w.err = errors.New("broker down")
	p.Publish(context.Background(), TicketStatusChanged, tk)
	if len(w.msgs) != 2 {
		t.Errorf("write should still be attempted, got %d", len(w.msgs))
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed=%v", err, w.closed)
	}
}
