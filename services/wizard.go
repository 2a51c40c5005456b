package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cashback_bot/claim"
	"cashback_bot/db"
	"cashback_bot/events"
)

// Wizard drives claim.Machine for one claimant at a time: it renders
// prompts, acknowledges uploads and finalizes confirmed drafts.
type Wizard struct {
	gw        ChatGateway
	store     TicketStore
	casinos   CasinoCatalog
	machine   *claim.Machine
	sessions  *Sessions
	admission *Admission
	notify    *Notifier
	events    TicketEvents
	paid      bool
	log       *zap.Logger
	now       func() time.Time
}

// Active reports whether the claimant has a draft in progress.
func (w *Wizard) Active(userID int64) bool {
	_, ok := w.sessions.Draft(userID)
	return ok
}

// Start opens a new draft unless the claimant is at the active-ticket limit.
// A draft already in progress is replaced.
func (w *Wizard) Start(ctx context.Context, in Inbound) {
	ok, err := w.admission.CanOpenNew(ctx, in.SenderID)
	if err != nil {
		w.log.Error("Failed to count active tickets", zap.Int64("tg_id", in.SenderID), zap.Error(err))
		w.notify.ToUser(in.ChatID, "❌ Не удалось проверить твои заявки. Попробуй чуть позже.", nil)
		return
	}
	if !ok {
		w.sessions.DropDraft(in.SenderID)
		w.refuse(ctx, in)
		return
	}

	d := claim.NewDraft(uuid.NewString(), w.now())
	w.sessions.OpenDraft(in.SenderID, d)
	out := w.machine.Fire(d, claim.Event{Kind: claim.EvStart})
	w.log.Info("Draft started", zap.Int64("tg_id", in.SenderID), zap.String("draft", d.ID))
	w.render(ctx, in, d, out)
}

// HandleMessage feeds free text or media into the claimant's draft. It
// reports false when there is no draft to feed.
func (w *Wizard) HandleMessage(ctx context.Context, in Inbound) bool {
	d, ok := w.sessions.Draft(in.SenderID)
	if !ok {
		return false
	}
	ev := claim.Event{Kind: claim.EvText, Text: in.Text}
	if in.Media != nil {
		ev = claim.Event{Kind: claim.EvMedia, Media: &claim.Media{Photo: in.Media.Kind == MediaPhoto, Ref: in.Media.Ref}}
	}
	w.render(ctx, in, d, w.machine.Fire(d, ev))
	return true
}

// Press handles a wizard control. Presses rendered for another step than
// the one the draft is in are ignored with a notice.
func (w *Wizard) Press(ctx context.Context, in Inbound) {
	p, ok := parseWizardToken(in.Press.Data)
	d, active := w.sessions.Draft(in.SenderID)
	if !ok || !active || d.State != p.State {
		w.answer(in, "⏳ Эта кнопка уже неактуальна.", false)
		return
	}

	var ev claim.Event
	switch p.Verb {
	case verbPick:
		ev = claim.Event{Kind: claim.EvSelectCasino, Casino: p.Arg}
	case verbDone:
		ev = claim.Event{Kind: claim.EvDone}
	case verbBack:
		ev = claim.Event{Kind: claim.EvBack}
	case verbCancel:
		ev = claim.Event{Kind: claim.EvCancel}
	case verbSend:
		ev = claim.Event{Kind: claim.EvConfirm}
	default:
		w.answer(in, "⏳ Эта кнопка уже неактуальна.", false)
		return
	}

	out := w.machine.Fire(d, ev)
	var ve *claim.ValidationError
	if errors.As(out.Err, &ve) {
		w.answer(in, ve.Reason, true)
		w.sessions.PutDraft(in.SenderID, d)
		return
	}
	w.answer(in, "", false)
	w.render(ctx, in, d, out)
}

// Cancel discards the claimant's draft.
func (w *Wizard) Cancel(ctx context.Context, in Inbound) {
	d, ok := w.sessions.Draft(in.SenderID)
	if !ok {
		w.notify.ToUser(in.ChatID, "Нечего отменять — активной заявки нет.", mainMenu())
		return
	}
	w.render(ctx, in, d, w.machine.Fire(d, claim.Event{Kind: claim.EvCancel}))
}

// ExpireIdle drops drafts idle longer than ttl and tells their owners.
func (w *Wizard) ExpireIdle(ttl time.Duration) int {
	expired := w.sessions.ExpireIdle(w.now().Add(-ttl))
	for _, id := range expired {
		w.notify.ToUser(id, "⌛ Черновик заявки удалён после долгого простоя. Начни заново: /cashback", mainMenu())
	}
	return len(expired)
}

func (w *Wizard) render(ctx context.Context, in Inbound, d *claim.Draft, out claim.Outcome) {
	switch out.Effect {
	case claim.EffectPrompt, claim.EffectReprompt, claim.EffectAccepted:
		if !w.sessions.PutDraft(in.SenderID, d) {
			w.log.Info("Draft expired while in use", zap.Int64("tg_id", in.SenderID), zap.String("draft", d.ID))
			return
		}
	}

	switch out.Effect {
	case claim.EffectPrompt:
		w.notify.ToUser(in.ChatID, promptText(d), wizardKeyboard(d, w.casinos))
	case claim.EffectReprompt:
		text := hintText(d)
		var ve *claim.ValidationError
		if errors.As(out.Err, &ve) {
			text = "⚠️ " + ve.Reason
		}
		w.notify.ToUser(in.ChatID, text, wizardKeyboard(d, w.casinos))
	case claim.EffectAccepted:
		w.notify.ToUser(in.ChatID, acceptedText(d, out.Count), wizardKeyboard(d, w.casinos))
	case claim.EffectCancelled:
		w.sessions.DropDraft(in.SenderID)
		w.log.Info("Draft cancelled", zap.Int64("tg_id", in.SenderID), zap.String("draft", d.ID))
		w.notify.ToUser(in.ChatID, "🚫 Заявка отменена. Если передумаешь — нажми «🎁 Подать заявку на кешбек».", mainMenu())
	case claim.EffectHome:
		w.sessions.DropDraft(in.SenderID)
		w.notify.ToUser(in.ChatID, "🏠 Главное меню:", mainMenu())
	case claim.EffectSubmit:
		w.finalize(ctx, in, d)
	}
}

// finalize persists a confirmed draft. The quota is checked again inside
// the creating transaction; a refusal discards the draft.
func (w *Wizard) finalize(ctx context.Context, in Inbound, d *claim.Draft) {
	user, err := w.store.FindOrCreateUser(ctx, in.SenderID, in.Username, "")
	if err != nil {
		w.failSubmit(in, d, err)
		return
	}

	nt := db.NewTicket{
		UserID:         user.ID,
		CasinoCode:     d.CasinoCode,
		IdentifierKind: d.Spec.Kind,
		Identifier:     d.Identifier,
		Quota:          w.admission.Quota(),
	}
	for _, a := range d.Attachments() {
		nt.Attachments = append(nt.Attachments, db.NewAttachment{Kind: a.Kind, FileID: a.Ref})
	}

	t, err := w.store.CreateTicket(ctx, nt)
	if errors.Is(err, ErrQuotaExceeded) {
		w.sessions.DropDraft(in.SenderID)
		w.log.Info("Draft refused at submit, quota reached", zap.Int64("tg_id", in.SenderID), zap.String("draft", d.ID))
		w.refuse(ctx, in)
		return
	}
	if err != nil {
		w.failSubmit(in, d, err)
		return
	}

	w.sessions.DropDraft(in.SenderID)
	w.log.Info("Ticket created",
		zap.String("ticket", t.Code),
		zap.Int64("tg_id", in.SenderID),
		zap.String("draft", d.ID),
		zap.Int("attachments", len(nt.Attachments)),
	)
	w.notify.ToUser(in.ChatID, fmt.Sprintf("✅ Заявка создана! Номер: <b>%s</b>\nМы свяжемся с тобой при необходимости.", t.Code), mainMenu())
	w.notify.ToOperators(newTicketNotice(t, w.casinos, len(d.Deposits), len(d.Withdrawals), in.Username), operatorKeyboard(t.Code, w.paid))
	w.events.Publish(ctx, events.TicketCreated, t)
}

// failSubmit keeps the draft at the confirmation step so the claimant can retry.
func (w *Wizard) failSubmit(in Inbound, d *claim.Draft, err error) {
	w.log.Error("Failed to create ticket", zap.Int64("tg_id", in.SenderID), zap.String("draft", d.ID), zap.Error(err))
	if !w.sessions.PutDraft(in.SenderID, d) {
		return
	}
	w.notify.ToUser(in.ChatID, "❌ Не удалось отправить заявку. Попробуй ещё раз чуть позже.", wizardKeyboard(d, w.casinos))
}

func (w *Wizard) refuse(ctx context.Context, in Inbound) {
	active, err := w.admission.ListActive(ctx, in.SenderID)
	if err != nil {
		w.log.Error("Failed to list active tickets", zap.Int64("tg_id", in.SenderID), zap.Error(err))
	}
	w.notify.ToUser(in.ChatID, activeListText(active, w.admission.Max()), nil)
}

func (w *Wizard) answer(in Inbound, text string, alert bool) {
	if in.Press == nil {
		return
	}
	if err := w.gw.AnswerPress(in.Press.ID, text, alert); err != nil {
		w.log.Debug("Failed to answer press", zap.Error(err))
	}
}
