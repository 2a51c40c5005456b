package services

import (
	"fmt"

	"go.uber.org/zap"

	"cashback_bot/models"
)

// maxBatch is the messenger's per-album item limit.
const maxBatch = 10

// Delivery is the outcome of one send in a fan-out.
type Delivery struct {
	Recipient int64
	Err       error
}

// Failed counts deliveries that did not go through.
func Failed(ds []Delivery) int {
	n := 0
	for _, d := range ds {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Notifier fans messages out to operators and delivers them to claimants.
// Every recipient is tried independently; errors are logged and returned
// as outcomes, never as a failure of the whole call.
type Notifier struct {
	gw         ChatGateway
	recipients []int64
	log        *zap.Logger
}

// NewNotifier builds the operator recipient list: every operator id, then
// the operator group when set.
func NewNotifier(gw ChatGateway, operators []int64, groupID int64, log *zap.Logger) *Notifier {
	recipients := append([]int64(nil), operators...)
	if groupID != 0 {
		recipients = append(recipients, groupID)
	}
	return &Notifier{gw: gw, recipients: recipients, log: log}
}

func (n *Notifier) ToOperators(text string, kb Keyboard) []Delivery {
	return n.fanOut(func(id int64) error {
		_, err := n.gw.SendText(id, text, kb)
		return err
	})
}

func (n *Notifier) ToOperatorsMedia(m Media) []Delivery {
	return n.fanOut(func(id int64) error {
		return n.gw.SendMedia(id, m)
	})
}

func (n *Notifier) fanOut(send func(int64) error) []Delivery {
	out := make([]Delivery, 0, len(n.recipients))
	for _, id := range n.recipients {
		err := send(id)
		if err != nil {
			n.log.Warn("Failed to notify operator", zap.Int64("recipient", id), zap.Error(err))
		}
		out = append(out, Delivery{Recipient: id, Err: err})
	}
	return out
}

// ToUser sends text to one chat. The error is logged and returned so the
// caller can tell the operator.
func (n *Notifier) ToUser(chatID int64, text string, kb Keyboard) error {
	if _, err := n.gw.SendText(chatID, text, kb); err != nil {
		n.log.Warn("Failed to send message", zap.Int64("recipient", chatID), zap.Error(err))
		return err
	}
	return nil
}

func mediaOf(a models.Attachment) Media {
	kind := MediaDocument
	if a.Kind.IsPhoto() {
		kind = MediaPhoto
	}
	return Media{Kind: kind, Ref: a.FileID}
}

// SendAttachments re-delivers a ticket's files to chatID: deposits first,
// then withdrawals, in albums of at most maxBatch. Only the first item of
// each group carries the caption.
func (n *Notifier) SendAttachments(chatID int64, code string, atts []models.Attachment) error {
	if len(atts) == 0 {
		return n.ToUser(chatID, fmt.Sprintf("По %s вложений нет.", code), nil)
	}
	var deposits, withdrawals []Media
	for _, a := range atts {
		if a.Kind.IsDeposit() {
			deposits = append(deposits, mediaOf(a))
		} else if a.Kind.IsWithdraw() {
			withdrawals = append(withdrawals, mediaOf(a))
		}
	}
	var firstErr error
	for _, g := range []struct {
		title string
		items []Media
	}{
		{"💳 Скрины депозитов", deposits},
		{"📤 Скрины выводов", withdrawals},
	} {
		if err := n.sendGroup(chatID, code, g.title, g.items); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *Notifier) sendGroup(chatID int64, code, title string, items []Media) error {
	if len(items) == 0 {
		return nil
	}
	caption := fmt.Sprintf("%s для %s (всего %d)", title, code, len(items))
	var firstErr error
	for start := 0; start < len(items); start += maxBatch {
		end := start + maxBatch
		if end > len(items) {
			end = len(items)
		}
		chunk := append([]Media(nil), items[start:end]...)
		if start == 0 {
			chunk[0].Caption = caption
		}
		var err error
		if len(chunk) == 1 {
			err = n.gw.SendMedia(chatID, chunk[0])
		} else {
			err = n.gw.SendMediaBatch(chatID, chunk)
		}
		if err != nil {
			n.log.Warn("Failed to send attachments",
				zap.String("ticket", code),
				zap.Int64("recipient", chatID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
