package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

func (b *Bot) HandleUpdate(ctx context.Context, in Inbound) {
	if in.Press != nil {
		b.handlePress(ctx, in)
		return
	}
	b.handleMessage(ctx, in)
}

func (b *Bot) handleMessage(ctx context.Context, in Inbound) {
	isOperator := b.moderation.IsOperator(in.SenderID)

	if in.Command != "" {
		b.handleCommand(ctx, in, isOperator)
		return
	}
	if isOperator && in.Media == nil && b.sessions.HasDialog(in.SenderID) {
		b.moderation.ConsumeDialog(ctx, in.SenderID, in.ChatID, in.Text)
		return
	}
	if in.Media == nil && strings.TrimSpace(in.Text) == myTicketsLabel {
		b.sendMyTickets(ctx, in)
		return
	}
	if b.wizard.HandleMessage(ctx, in) {
		return
	}
	if isOperator {
		return
	}
	if _, err := b.relay.Handle(ctx, in); err != nil {
		b.log.Error("Failed to relay claimant message", zap.Int64("tg_id", in.SenderID), zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, in Inbound, isOperator bool) {
	switch in.Command {
	case "start":
		b.sendWelcome(ctx, in)
	case "cashback":
		b.wizard.Start(ctx, in)
	case "my":
		b.sendMyTickets(ctx, in)
	case "cancel":
		b.wizard.Cancel(ctx, in)
	case "help":
		if isOperator {
			b.notify.ToUser(in.ChatID, operatorHelpText(b.opts.PaidEnabled), nil)
		} else {
			b.notify.ToUser(in.ChatID, userHelpText(), mainMenu())
		}
	case "tickets", "ticket", "files":
		// не-админам эти команды не отвечают
		if isOperator {
			b.handleOperatorCommand(ctx, in)
		}
	default:
		b.notify.ToUser(in.ChatID, "❌ Неизвестная команда. Используй /help", nil)
	}
}

func (b *Bot) handlePress(ctx context.Context, in Inbound) {
	data := in.Press.Data
	b.log.Debug("Received press", zap.String("data", data), zap.Int64("tg_id", in.SenderID))

	switch {
	case data == tokenNewClaim:
		b.answer(in, "", false)
		b.wizard.Start(ctx, in)
	case data == tokenMyTickets:
		b.answer(in, "", false)
		b.sendMyTickets(ctx, in)
	case strings.HasPrefix(data, prefixWizard):
		b.wizard.Press(ctx, in)
	case strings.HasPrefix(data, prefixList), strings.HasPrefix(data, prefixOperator):
		if !b.moderation.IsOperator(in.SenderID) {
			b.answer(in, "Только для админов", true)
			return
		}
		if strings.HasPrefix(data, prefixList) {
			b.handleListPress(ctx, in)
		} else {
			b.handleOperatorPress(ctx, in)
		}
	default:
		b.log.Warn("Unknown press data", zap.String("data", data))
		b.answer(in, "⏳ Эта кнопка уже неактуальна.", false)
	}
}

func (b *Bot) sendWelcome(ctx context.Context, in Inbound) {
	if _, err := b.store.FindOrCreateUser(ctx, in.SenderID, in.Username, strings.TrimSpace(in.Args)); err != nil {
		b.log.Error("Failed to register user", zap.Int64("tg_id", in.SenderID), zap.Error(err))
	}
	b.notify.ToUser(in.ChatID, welcomeText(), mainMenu())
}

func (b *Bot) sendMyTickets(ctx context.Context, in Inbound) {
	tickets, err := b.store.ListTicketsForUser(ctx, in.SenderID)
	if err != nil {
		b.log.Error("Failed to list tickets", zap.Int64("tg_id", in.SenderID), zap.Error(err))
		b.notify.ToUser(in.ChatID, "❌ Ошибка при получении заявок.", nil)
		return
	}
	if len(tickets) == 0 {
		b.notify.ToUser(in.ChatID, "🧾 У тебя пока нет заявок. Нажми «🎁 Подать заявку на кешбек».", mainMenu())
		return
	}
	lines := []string{"🧾 Твои заявки:"}
	for i := range tickets {
		lines = append(lines, "— "+ticketBrief(&tickets[i], b.casinos))
	}
	b.notify.ToUser(in.ChatID, strings.Join(lines, "\n"), nil)
}

func (b *Bot) answer(in Inbound, text string, alert bool) {
	if err := b.gw.AnswerPress(in.Press.ID, text, alert); err != nil {
		b.log.Debug("Failed to answer press", zap.Error(err))
	}
}
