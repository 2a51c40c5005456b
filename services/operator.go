package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"cashback_bot/models"
)

const (
	pageSize      = 10
	filterPending = "pending"
	filterAll     = "all"
)

// listFilter maps a /tickets argument to statuses; nil means every status.
func listFilter(name string) ([]models.TicketStatus, bool) {
	switch name {
	case filterPending:
		return []models.TicketStatus{models.StatusNew, models.StatusNeedsInfo}, true
	case filterAll:
		return nil, true
	}
	s := models.TicketStatus(name)
	if !s.Valid() {
		return nil, false
	}
	return []models.TicketStatus{s}, true
}

func (b *Bot) handleOperatorCommand(ctx context.Context, in Inbound) {
	arg := strings.TrimSpace(in.Args)
	switch in.Command {
	case "tickets":
		filter := strings.ToLower(arg)
		if filter == "" {
			filter = filterPending
		}
		if _, ok := listFilter(filter); !ok {
			b.notify.ToUser(in.ChatID, "Неизвестный фильтр. Доступно: pending, all, new, needs_info, approved, rejected, paid.", nil)
			return
		}
		text, kb, _, err := b.ticketsPage(ctx, filter, 0)
		if err != nil {
			b.log.Error("Failed to list tickets", zap.String("filter", filter), zap.Error(err))
			b.notify.ToUser(in.ChatID, operatorErrorText(err), nil)
			return
		}
		b.notify.ToUser(in.ChatID, text, kb)
	case "ticket":
		if arg == "" {
			b.notify.ToUser(in.ChatID, "Использование: /ticket TCK-YYYYMMDD-####", nil)
			return
		}
		t, err := b.store.FindTicketByCode(ctx, arg)
		if err != nil {
			b.notify.ToUser(in.ChatID, operatorErrorText(err), nil)
			return
		}
		b.notify.ToUser(in.ChatID, ticketBrief(t, b.casinos), operatorKeyboard(t.Code, b.opts.PaidEnabled))
	case "files":
		if arg == "" {
			b.notify.ToUser(in.ChatID, "Использование: /files TCK-YYYYMMDD-####", nil)
			return
		}
		if err := b.moderation.ListAttachments(ctx, in.SenderID, in.ChatID, arg); err != nil {
			b.notify.ToUser(in.ChatID, operatorErrorText(err), nil)
		}
	}
}

// ticketsPage renders one page of the operator list. empty is true when the
// page has no rows.
func (b *Bot) ticketsPage(ctx context.Context, filter string, offset int) (string, Keyboard, bool, error) {
	statuses, _ := listFilter(filter)
	rows, err := b.store.ListTickets(ctx, statuses, pageSize+1, offset)
	if err != nil {
		return "", nil, false, err
	}
	if len(rows) == 0 {
		if filter == filterPending {
			return "Нет заявок в ожидании (new/needs_info).", nil, true, nil
		}
		return "Тикетов со статусом " + filter + " нет.", nil, true, nil
	}
	more := len(rows) > pageSize
	if more {
		rows = rows[:pageSize]
	}
	lines := []string{listHeader(filter)}
	for i := range rows {
		lines = append(lines, listLine(offset+i+1, &rows[i], b.casinos))
	}
	return strings.Join(lines, "\n"), pagingKeyboard(filter, offset, pageSize, more), false, nil
}

func (b *Bot) handleListPress(ctx context.Context, in Inbound) {
	filter, offset, ok := parseListToken(in.Press.Data)
	if _, known := listFilter(filter); !ok || !known {
		b.answer(in, "⏳ Эта кнопка уже неактуальна.", false)
		return
	}
	text, kb, empty, err := b.ticketsPage(ctx, filter, offset)
	if err != nil {
		b.log.Error("Failed to list tickets", zap.String("filter", filter), zap.Error(err))
		b.answer(in, "Ошибка при получении заявок", true)
		return
	}
	if empty && offset > 0 {
		b.answer(in, "Больше нет", false)
		return
	}
	if err := b.gw.EditText(in.ChatID, in.Press.MessageID, text, kb); err != nil {
		b.log.Warn("Failed to edit message", zap.Error(err))
	}
	b.answer(in, "", false)
}

func (b *Bot) handleOperatorPress(ctx context.Context, in Inbound) {
	code, action, ok := parseOperatorToken(in.Press.Data)
	if !ok {
		b.answer(in, "⏳ Эта кнопка уже неактуальна.", false)
		return
	}
	op := in.SenderID

	var (
		err    error
		notice string
	)
	switch action {
	case actApprove:
		if _, err = b.moderation.Approve(ctx, op, code); err == nil {
			notice = "Одобрено"
			b.refreshControls(in, code)
		}
	case actPaid:
		if _, err = b.moderation.MarkPaid(ctx, op, code); err == nil {
			notice = "Отмечено как выплачено"
			b.refreshControls(in, code)
		}
	case actReject:
		if err = b.moderation.BeginReject(ctx, op, code); err == nil {
			b.notify.ToUser(in.ChatID, "Укажи <b>причину отклонения</b> (одним сообщением). Это увидит пользователь.", nil)
		}
	case actNeedInfo:
		if _, err = b.moderation.RequestInfo(ctx, op, code); err == nil {
			b.notify.ToUser(in.ChatID, "Напиши текст, который отправим пользователю (запрос доп. инфо).", nil)
		}
	case actReply:
		if err = b.moderation.BeginReply(ctx, op, code); err == nil {
			b.notify.ToUser(in.ChatID, "Введи сообщение пользователю по этому тикету.", nil)
		}
	case actFiles:
		err = b.moderation.ListAttachments(ctx, op, op, code)
	default:
		b.answer(in, "⏳ Эта кнопка уже неактуальна.", false)
		return
	}

	if err != nil {
		if !errors.Is(err, ErrTicketNotFound) && !errors.Is(err, ErrTransition) {
			b.log.Error("Operator action failed", zap.String("ticket", code), zap.String("action", action), zap.Error(err))
		}
		b.answer(in, operatorErrorText(err), true)
		return
	}
	b.answer(in, notice, false)
}

func (b *Bot) refreshControls(in Inbound, code string) {
	if err := b.gw.EditControls(in.ChatID, in.Press.MessageID, operatorKeyboard(code, b.opts.PaidEnabled)); err != nil {
		b.log.Debug("Failed to edit controls", zap.String("ticket", code), zap.Error(err))
	}
}
