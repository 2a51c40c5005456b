package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"cashback_bot/catalog"
	"cashback_bot/claim"
	"cashback_bot/config"
	"cashback_bot/db"
	"cashback_bot/models"
)

const (
	operatorID = int64(1)
	groupID    = int64(-100)
)

var today = time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)

type outMsg struct {
	Chat int64
	Text string
	KB   Keyboard
}

type mediaMsg struct {
	Chat  int64
	Items []Media
	Batch bool
}

type answerRec struct {
	Text  string
	Alert bool
}

type fakeGateway struct {
	mu       sync.Mutex
	texts    []outMsg
	media    []mediaMsg
	edits    []outMsg
	controls []outMsg
	answers  []answerRec
	fail     map[int64]error
	nextID   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{fail: make(map[int64]error)}
}

func (g *fakeGateway) SendText(chatID int64, text string, kb Keyboard) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[chatID]; err != nil {
		return 0, err
	}
	g.texts = append(g.texts, outMsg{Chat: chatID, Text: text, KB: kb})
	g.nextID++
	return g.nextID, nil
}

func (g *fakeGateway) SendMedia(chatID int64, m Media) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[chatID]; err != nil {
		return err
	}
	g.media = append(g.media, mediaMsg{Chat: chatID, Items: []Media{m}})
	return nil
}

func (g *fakeGateway) SendMediaBatch(chatID int64, items []Media) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[chatID]; err != nil {
		return err
	}
	if len(items) > maxBatch {
		return errors.New("batch too large")
	}
	g.media = append(g.media, mediaMsg{Chat: chatID, Items: append([]Media(nil), items...), Batch: true})
	return nil
}

func (g *fakeGateway) EditText(chatID int64, _ int, text string, kb Keyboard) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits = append(g.edits, outMsg{Chat: chatID, Text: text, KB: kb})
	return nil
}

func (g *fakeGateway) EditControls(chatID int64, _ int, kb Keyboard) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.controls = append(g.controls, outMsg{Chat: chatID, KB: kb})
	return nil
}

func (g *fakeGateway) AnswerPress(_ string, text string, alert bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers = append(g.answers, answerRec{Text: text, Alert: alert})
	return nil
}

func (g *fakeGateway) textsTo(chat int64) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.texts {
		if m.Chat == chat {
			out = append(out, m.Text)
		}
	}
	return out
}

func (g *fakeGateway) lastTo(chat int64) outMsg {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.texts) - 1; i >= 0; i-- {
		if g.texts[i].Chat == chat {
			return g.texts[i]
		}
	}
	return outMsg{}
}

func (g *fakeGateway) mediaTo(chat int64) []Media {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Media
	for _, m := range g.media {
		if m.Chat == chat {
			out = append(out, m.Items...)
		}
	}
	return out
}

func (g *fakeGateway) lastAnswer() answerRec {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.answers) == 0 {
		return answerRec{}
	}
	return g.answers[len(g.answers)-1]
}

type recordedEvents struct {
	mu    sync.Mutex
	names []string
}

func (r *recordedEvents) Publish(_ context.Context, event string, t *models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, event+":"+string(t.Status))
}

func (r *recordedEvents) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	bot    *Bot
	gw     *fakeGateway
	store  *db.TicketStore
	events *recordedEvents
	now    time.Time
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	conn, err := db.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })

	h := &harness{
		t:      t,
		ctx:    context.Background(),
		gw:     newFakeGateway(),
		store:  db.NewTicketStore(conn),
		events: &recordedEvents{},
		now:    today,
	}
	h.store.SetClock(func() time.Time { return h.now })

	opts := Options{
		Operators:      []int64{operatorID},
		OperatorGroup:  groupID,
		ActiveStatuses: []models.TicketStatus{models.StatusNew, models.StatusNeedsInfo, models.StatusApproved},
		MaxActive:      3,
		TerminalPolicy: config.PolicyPermissive,
		PaidEnabled:    true,
		DraftTTL:       24 * time.Hour,
		SweepInterval:  10 * time.Minute,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.bot = New(h.gw, h.store, catalog.Default(), h.events, opts, zap.NewNop())
	h.bot.SetClock(func() time.Time { return h.now })
	return h
}

func (h *harness) do(in Inbound) {
	h.bot.HandleUpdate(h.ctx, in)
}

func textIn(from int64, text string) Inbound {
	return Inbound{SenderID: from, ChatID: from, Username: "player", Text: text}
}

func cmdIn(from int64, command, args string) Inbound {
	in := textIn(from, "/"+command)
	in.Command, in.Args = command, args
	return in
}

func photoIn(from int64, ref string) Inbound {
	return Inbound{SenderID: from, ChatID: from, Username: "player", Media: &Media{Kind: MediaPhoto, Ref: ref}}
}

func pressIn(from int64, data string) Inbound {
	return Inbound{SenderID: from, ChatID: from, Username: "player", Press: &Press{ID: "press", Data: data, MessageID: 42}}
}

// submitClaim walks the whole wizard and returns the created ticket code.
func (h *harness) submitClaim(user int64, casino, ident string) string {
	h.t.Helper()
	h.do(cmdIn(user, "cashback", ""))
	h.do(pressIn(user, wizardToken(claim.SelectingCasino, verbPick, casino)))
	h.do(textIn(user, ident))
	h.do(photoIn(user, "dep-"+ident))
	h.do(pressIn(user, wizardToken(claim.CollectingDeposits, verbDone)))
	h.do(photoIn(user, "wd-"+ident))
	h.do(textIn(user, "готово"))
	h.do(pressIn(user, wizardToken(claim.Confirming, verbSend)))

	last := h.gw.lastTo(user).Text
	if !strings.Contains(last, "Заявка создана") {
		h.t.Fatalf("claim not created, last message: %q", last)
	}
	i := strings.Index(last, "TCK-")
	return last[i : i+len("TCK-20261015-0001")]
}

func newTicketFor(userID uint) db.NewTicket {
	return db.NewTicket{
		UserID:         userID,
		CasinoCode:     "stake",
		IdentifierKind: models.IdentifierNickname,
		Identifier:     "nick",
		Attachments: []db.NewAttachment{
			{Kind: models.DepositPhoto, FileID: "d"},
			{Kind: models.WithdrawPhoto, FileID: "w"},
		},
	}
}

func (h *harness) status(code string) models.TicketStatus {
	h.t.Helper()
	tk, err := h.store.FindTicketByCode(h.ctx, code)
	if err != nil {
		h.t.Fatalf("FindTicketByCode(%s) error = %v", code, err)
	}
	return tk.Status
}
