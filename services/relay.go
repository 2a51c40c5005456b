package services

import (
	"context"
	"errors"
	"fmt"
	"html"

	"go.uber.org/zap"

	"cashback_bot/models"
)

// Relay forwards claimant messages to operators while their latest ticket
// waits for more information.
type Relay struct {
	store  TicketStore
	notify *Notifier
	log    *zap.Logger
}

// Handle logs and forwards in when the sender's most recent ticket is
// needs_info. Messages about a new ticket are only logged. It reports
// whether anything was forwarded.
func (r *Relay) Handle(ctx context.Context, in Inbound) (bool, error) {
	t, err := r.store.LatestTicketForUser(ctx, in.SenderID)
	if errors.Is(err, ErrTicketNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if t.Status != models.StatusNeedsInfo && t.Status != models.StatusNew {
		return false, nil
	}

	text := in.Text
	if in.Media != nil {
		text = in.Caption
	}
	ref := ""
	if in.Media != nil {
		ref = in.Media.Ref
	}
	if err := r.store.AppendMessage(ctx, t.ID, models.SenderUser, text, ref); err != nil {
		return false, fmt.Errorf("log claimant message: %w", err)
	}
	if t.Status != models.StatusNeedsInfo {
		return false, nil
	}

	header := fmt.Sprintf("📨 Ответ от пользователя по <b>%s</b>:", t.Code)
	body := html.EscapeString(text)
	if in.Media != nil {
		if body == "" {
			body = "(без подписи)"
		}
		r.notify.ToOperators(header+"\n"+body, nil)
		r.notify.ToOperatorsMedia(Media{Kind: in.Media.Kind, Ref: in.Media.Ref, Caption: html.EscapeString(text)})
	} else {
		if body == "" {
			body = "(без текста)"
		}
		r.notify.ToOperators(header+"\n"+body, nil)
	}
	r.log.Info("Claimant message relayed", zap.String("ticket", t.Code), zap.Int64("tg_id", in.SenderID))
	return true, nil
}
