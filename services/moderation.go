package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"cashback_bot/config"
	"cashback_bot/events"
	"cashback_bot/models"
)

// Moderation applies operator decisions to tickets.
type Moderation struct {
	store     TicketStore
	notify    *Notifier
	sessions  *Sessions
	events    TicketEvents
	operators map[int64]bool
	policy    string
	paid      bool
	log       *zap.Logger
}

func (m *Moderation) IsOperator(id int64) bool {
	return m.operators[id]
}

// allow enforces the terminal policy. A paid ticket never changes again and
// paid is always limited to approved tickets; the other decisions are only
// checked under the strict policy.
func (m *Moderation) allow(t *models.Ticket, to models.TicketStatus) error {
	if t.Status == models.StatusPaid || to == models.StatusPaid {
		if !m.paid || !models.CanTransition(t.Status, to) {
			return fmt.Errorf("%s %s -> %s: %w", t.Code, t.Status, to, ErrTransition)
		}
		return nil
	}
	if m.policy == config.PolicyStrict && !models.CanTransition(t.Status, to) {
		return fmt.Errorf("%s %s -> %s: %w", t.Code, t.Status, to, ErrTransition)
	}
	return nil
}

func (m *Moderation) load(ctx context.Context, operatorID int64, code string) (*models.Ticket, error) {
	if !m.IsOperator(operatorID) {
		return nil, ErrUnauthorized
	}
	return m.store.FindTicketByCode(ctx, code)
}

func (m *Moderation) setStatus(ctx context.Context, operatorID int64, t *models.Ticket, to models.TicketStatus, logText string) (*models.Ticket, error) {
	if err := m.allow(t, to); err != nil {
		return nil, err
	}
	updated, err := m.store.UpdateStatus(ctx, t.Code, to)
	if err != nil {
		return nil, err
	}
	if err := m.store.AppendMessage(ctx, updated.ID, models.SenderAdmin, logText, ""); err != nil {
		m.log.Error("Failed to log decision", zap.String("ticket", updated.Code), zap.Error(err))
	}
	m.log.Info("Ticket status changed",
		zap.String("ticket", updated.Code),
		zap.String("from", string(t.Status)),
		zap.String("to", string(to)),
		zap.Int64("operator", operatorID),
	)
	m.events.Publish(ctx, events.TicketStatusChanged, updated)
	return updated, nil
}

func (m *Moderation) Approve(ctx context.Context, operatorID int64, code string) (*models.Ticket, error) {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return nil, err
	}
	t, err = m.setStatus(ctx, operatorID, t, models.StatusApproved, "Заявка одобрена")
	if err != nil {
		return nil, err
	}
	m.notify.ToUser(t.User.TgID, fmt.Sprintf("🟢 Твоя заявка <b>%s</b> одобрена. Ожидай начисления кешбека.", t.Code), nil)
	return t, nil
}

// BeginReject waits for the operator's next text as the rejection reason.
func (m *Moderation) BeginReject(ctx context.Context, operatorID int64, code string) error {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return err
	}
	if err := m.allow(t, models.StatusRejected); err != nil {
		return err
	}
	m.sessions.StartDialog(operatorID, dialogAwaitReason, t.Code)
	return nil
}

// Reject closes the ticket with reason; a blank reason gets a placeholder.
func (m *Moderation) Reject(ctx context.Context, operatorID int64, code, reason string) (*models.Ticket, error) {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = rejectFallback
	}
	t, err = m.setStatus(ctx, operatorID, t, models.StatusRejected, "Отклонено. Причина: "+reason)
	if err != nil {
		return nil, err
	}
	m.notify.ToUser(t.User.TgID, fmt.Sprintf("🔴 Твоя заявка <b>%s</b> отклонена.\nПричина: %s", t.Code, html.EscapeString(reason)), nil)
	return t, nil
}

// RequestInfo moves the ticket to needs_info right away and then waits for
// the operator's message to the claimant.
func (m *Moderation) RequestInfo(ctx context.Context, operatorID int64, code string) (*models.Ticket, error) {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return nil, err
	}
	t, err = m.setStatus(ctx, operatorID, t, models.StatusNeedsInfo, "Запрошена доп. информация")
	if err != nil {
		return nil, err
	}
	m.sessions.StartDialog(operatorID, dialogAwaitMessage, t.Code)
	return t, nil
}

// BeginReply waits for a free-form message without touching the status.
func (m *Moderation) BeginReply(ctx context.Context, operatorID int64, code string) error {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return err
	}
	m.sessions.StartDialog(operatorID, dialogAwaitMessage, t.Code)
	return nil
}

// SendMessage relays an operator's text to the claimant and logs it.
func (m *Moderation) SendMessage(ctx context.Context, operatorID int64, code, text string) error {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return err
	}
	if err := m.notify.ToUser(t.User.TgID, fmt.Sprintf("💬 Сообщение по заявке <b>%s</b>:\n%s", t.Code, html.EscapeString(text)), nil); err != nil {
		return fmt.Errorf("deliver to claimant: %w", err)
	}
	if err := m.store.AppendMessage(ctx, t.ID, models.SenderAdmin, text, ""); err != nil {
		m.log.Error("Failed to log operator message", zap.String("ticket", t.Code), zap.Error(err))
	}
	return nil
}

func (m *Moderation) MarkPaid(ctx context.Context, operatorID int64, code string) (*models.Ticket, error) {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return nil, err
	}
	t, err = m.setStatus(ctx, operatorID, t, models.StatusPaid, "Кешбек выплачен")
	if err != nil {
		return nil, err
	}
	m.notify.ToUser(t.User.TgID, fmt.Sprintf("💎 Кешбек по заявке <b>%s</b> выплачен.", t.Code), nil)
	return t, nil
}

// ListAttachments re-sends the ticket's files to the operator's chat.
func (m *Moderation) ListAttachments(ctx context.Context, operatorID, chatID int64, code string) error {
	t, err := m.load(ctx, operatorID, code)
	if err != nil {
		return err
	}
	atts, err := m.store.ListAttachments(ctx, t.ID)
	if err != nil {
		return err
	}
	return m.notify.SendAttachments(chatID, t.Code, atts)
}

// ConsumeDialog feeds text into the operator's pending sub-dialog. It
// reports false when nothing was pending.
func (m *Moderation) ConsumeDialog(ctx context.Context, operatorID, chatID int64, text string) bool {
	dlg, ok := m.sessions.TakeDialog(operatorID)
	if !ok {
		return false
	}
	switch dlg.Kind {
	case dialogAwaitReason:
		if _, err := m.Reject(ctx, operatorID, dlg.Code, text); err != nil {
			m.notify.ToUser(chatID, operatorErrorText(err), nil)
			return true
		}
		m.notify.ToUser(chatID, "Готово: тикет отклонён, причина отправлена пользователю.", nil)
	case dialogAwaitMessage:
		if strings.TrimSpace(text) == "" {
			m.notify.ToUser(chatID, "Пустое сообщение не отправлено.", nil)
			return true
		}
		if err := m.SendMessage(ctx, operatorID, dlg.Code, text); err != nil {
			m.notify.ToUser(chatID, operatorErrorText(err), nil)
			return true
		}
		m.notify.ToUser(chatID, "✅ Сообщение отправлено пользователю.", nil)
	}
	return true
}
