package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"cashback_bot/services"
)

// Connect authorizes the bot token.
func Connect(token string, debug bool, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = debug
	log.Info("Authorized on account", zap.String("username", bot.Self.UserName))
	return bot, nil
}

// Poll long-polls the Bot API and converts updates until ctx is done. The
// returned channel is closed afterwards.
func Poll(ctx context.Context, bot *tgbotapi.BotAPI, log *zap.Logger) <-chan services.Inbound {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	out := make(chan services.Inbound)
	go func() {
		defer close(out)
		defer bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				in, ok := Convert(upd)
				if !ok {
					log.Debug("Skipping update", zap.Int("update_id", upd.UpdateID))
					continue
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Convert maps a Bot API update to an Inbound event. Updates without a
// sender, a message or a callback are not handled.
func Convert(upd tgbotapi.Update) (services.Inbound, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.From == nil {
			return services.Inbound{}, false
		}
		in := services.Inbound{
			SenderID: cq.From.ID,
			ChatID:   cq.From.ID,
			Username: cq.From.UserName,
			Press:    &services.Press{ID: cq.ID, Data: cq.Data},
		}
		if cq.Message != nil {
			in.Press.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				in.ChatID = cq.Message.Chat.ID
			}
		}
		return in, true
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return services.Inbound{}, false
	}
	in := services.Inbound{
		SenderID: msg.From.ID,
		ChatID:   msg.Chat.ID,
		Username: msg.From.UserName,
		Text:     msg.Text,
		Caption:  msg.Caption,
	}
	if msg.IsCommand() {
		in.Command = msg.Command()
		in.Args = msg.CommandArguments()
	}
	switch {
	case len(msg.Photo) > 0:
		// последний размер самый большой
		in.Media = &services.Media{Kind: services.MediaPhoto, Ref: msg.Photo[len(msg.Photo)-1].FileID}
	case msg.Document != nil:
		in.Media = &services.Media{Kind: services.MediaDocument, Ref: msg.Document.FileID}
	}
	return in, true
}
