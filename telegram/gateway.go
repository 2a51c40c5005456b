package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"cashback_bot/services"
)

// botAPI is the part of *tgbotapi.BotAPI the gateway calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Gateway implements services.ChatGateway on the Bot API. Every text goes
// out in HTML parse mode.
type Gateway struct {
	api botAPI
	log *zap.Logger
}

func NewGateway(api botAPI, log *zap.Logger) *Gateway {
	return &Gateway{api: api, log: log}
}

func markup(kb services.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, row)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

func (g *Gateway) SendText(chatID int64, text string, kb services.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = *m
	}
	sent, err := g.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (g *Gateway) SendMedia(chatID int64, m services.Media) error {
	var c tgbotapi.Chattable
	if m.Kind == services.MediaPhoto {
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(m.Ref))
		p.Caption, p.ParseMode = m.Caption, tgbotapi.ModeHTML
		c = p
	} else {
		d := tgbotapi.NewDocument(chatID, tgbotapi.FileID(m.Ref))
		d.Caption, d.ParseMode = m.Caption, tgbotapi.ModeHTML
		c = d
	}
	if _, err := g.api.Send(c); err != nil {
		return fmt.Errorf("send %s to %d: %w", m.Kind, chatID, err)
	}
	return nil
}

// SendMediaBatch sends items as one album. The Bot API rejects albums
// mixing documents with photos, so such batches are split by kind.
func (g *Gateway) SendMediaBatch(chatID int64, items []services.Media) error {
	var photos, docs []interface{}
	for _, m := range items {
		if m.Kind == services.MediaPhoto {
			p := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(m.Ref))
			p.Caption, p.ParseMode = m.Caption, tgbotapi.ModeHTML
			photos = append(photos, p)
		} else {
			d := tgbotapi.NewInputMediaDocument(tgbotapi.FileID(m.Ref))
			d.Caption, d.ParseMode = m.Caption, tgbotapi.ModeHTML
			docs = append(docs, d)
		}
	}
	for _, group := range [][]interface{}{photos, docs} {
		if err := g.sendAlbum(chatID, group); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) sendAlbum(chatID int64, files []interface{}) error {
	switch len(files) {
	case 0:
		return nil
	case 1:
		// альбом из одного файла API не принимает
		var c tgbotapi.Chattable
		switch f := files[0].(type) {
		case tgbotapi.InputMediaPhoto:
			p := tgbotapi.NewPhoto(chatID, f.Media)
			p.Caption, p.ParseMode = f.Caption, f.ParseMode
			c = p
		case tgbotapi.InputMediaDocument:
			d := tgbotapi.NewDocument(chatID, f.Media)
			d.Caption, d.ParseMode = f.Caption, f.ParseMode
			c = d
		}
		_, err := g.api.Send(c)
		if err != nil {
			return fmt.Errorf("send media to %d: %w", chatID, err)
		}
		return nil
	}
	if _, err := g.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, files)); err != nil {
		return fmt.Errorf("send album of %d to %d: %w", len(files), chatID, err)
	}
	return nil
}

func (g *Gateway) EditText(chatID int64, messageID int, text string, kb services.Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup(kb)
	return g.ignoreUnmodified(g.api.Request(edit))
}

func (g *Gateway) EditControls(chatID int64, messageID int, kb services.Keyboard) error {
	m := markup(kb)
	if m == nil {
		m = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	return g.ignoreUnmodified(g.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, *m)))
}

func (g *Gateway) AnswerPress(pressID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(pressID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(pressID, text)
	}
	if _, err := g.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (g *Gateway) ignoreUnmodified(_ *tgbotapi.APIResponse, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "message is not modified") {
		g.log.Debug("Edit skipped, message is not modified")
		return nil
	}
	return fmt.Errorf("edit message: %w", err)
}
