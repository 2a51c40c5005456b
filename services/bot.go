package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cashback_bot/claim"
	"cashback_bot/config"
	"cashback_bot/models"
)

type Options struct {
	Operators      []int64
	OperatorGroup  int64
	ActiveStatuses []models.TicketStatus
	MaxActive      int
	TerminalPolicy string
	PaidEnabled    bool
	DraftTTL       time.Duration
	SweepInterval  time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	statuses := make([]models.TicketStatus, 0, len(cfg.ActiveStatuses))
	for _, s := range cfg.ActiveStatuses {
		statuses = append(statuses, models.TicketStatus(s))
	}
	return Options{
		Operators:      cfg.AdminIDs,
		OperatorGroup:  cfg.AdminGroupID,
		ActiveStatuses: statuses,
		MaxActive:      cfg.MaxActiveTickets,
		TerminalPolicy: cfg.TerminalPolicy,
		PaidEnabled:    cfg.PaidEnabled,
		DraftTTL:       cfg.DraftTTL,
		SweepInterval:  cfg.DraftSweepInterval,
	}
}

type Bot struct {
	gw      ChatGateway
	store   TicketStore
	casinos CasinoCatalog
	opts    Options
	log     *zap.Logger

	sessions   *Sessions
	dispatcher *Dispatcher
	admission  *Admission
	notify     *Notifier
	machine    *claim.Machine
	wizard     *Wizard
	moderation *Moderation
	relay      *Relay
}

func New(gw ChatGateway, store TicketStore, casinos CasinoCatalog, ev TicketEvents, opts Options, log *zap.Logger) *Bot {
	if ev == nil {
		ev = nopEvents{}
	}
	operators := make(map[int64]bool, len(opts.Operators))
	for _, id := range opts.Operators {
		operators[id] = true
	}

	b := &Bot{
		gw:         gw,
		store:      store,
		casinos:    casinos,
		opts:       opts,
		log:        log,
		sessions:   NewSessions(),
		dispatcher: NewDispatcher(log),
		admission:  NewAdmission(store, opts.ActiveStatuses, opts.MaxActive),
		notify:     NewNotifier(gw, opts.Operators, opts.OperatorGroup, log),
		machine:    claim.NewMachine(casinos),
	}
	b.wizard = &Wizard{
		gw:        gw,
		store:     store,
		casinos:   casinos,
		machine:   b.machine,
		sessions:  b.sessions,
		admission: b.admission,
		notify:    b.notify,
		events:    ev,
		paid:      opts.PaidEnabled,
		log:       log,
		now:       time.Now,
	}
	b.moderation = &Moderation{
		store:     store,
		notify:    b.notify,
		sessions:  b.sessions,
		events:    ev,
		operators: operators,
		policy:    opts.TerminalPolicy,
		paid:      opts.PaidEnabled,
		log:       log,
	}
	b.relay = &Relay{store: store, notify: b.notify, log: log}
	return b
}

// SetClock replaces the time source of drafts and idle expiry.
func (b *Bot) SetClock(now func() time.Time) {
	b.sessions.now = now
	b.machine.SetClock(now)
	b.wizard.now = now
}

// Stats feeds the health endpoint.
func (b *Bot) Stats() map[string]int {
	return map[string]int{
		"drafts":     b.sessions.DraftCount(),
		"busy_chats": b.dispatcher.Active(),
		"casinos":    len(b.casinos.ListEnabled()),
		"max_active": b.admission.Max(),
	}
}

// Submit queues in behind earlier events from the same sender.
func (b *Bot) Submit(ctx context.Context, in Inbound) bool {
	return b.dispatcher.Submit(in.SenderID, func() {
		b.HandleUpdate(ctx, in)
	})
}

// Run dispatches updates until ctx is cancelled or updates is closed, then
// waits for in-flight handlers.
func (b *Bot) Run(ctx context.Context, updates <-chan Inbound) {
	// Обработчики доживают до конца даже после отмены ctx
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.CleanupIdleDrafts(janitorCtx)
	}()

	b.log.Info("Bot is up", zap.Int("operators", len(b.opts.Operators)), zap.Int("casinos", len(b.casinos.ListEnabled())))
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case in, ok := <-updates:
			if !ok {
				break loop
			}
			b.Submit(jobCtx, in)
		}
	}

	stopJanitor()
	b.dispatcher.Close()
	wg.Wait()
	b.log.Info("Bot stopped", zap.Int("pending_drafts", b.sessions.DraftCount()))
}
