// Package claim is the cashback claim wizard: an explicit state set, the
// events a claimant can produce, and the transition table that decides
// which (state, event) pairs are legal. It has no side effects beyond
// mutating the Draft it is given; rendering and persistence live in the
// services package.
package claim

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cashback_bot/catalog"
	"cashback_bot/models"
)

type State int

const (
	Idle State = iota
	SelectingCasino
	EnteringIdentifier
	CollectingDeposits
	CollectingWithdrawals
	Confirming
)

var stateNames = map[State]string{
	Idle:                  "idle",
	SelectingCasino:       "casino",
	EnteringIdentifier:    "identifier",
	CollectingDeposits:    "deposits",
	CollectingWithdrawals: "withdrawals",
	Confirming:            "confirm",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return Idle, false
}

type EventKind int

const (
	EvStart EventKind = iota
	EvSelectCasino
	EvText
	EvMedia
	EvDone
	EvBack
	EvConfirm
	EvCancel
)

type Media struct {
	Photo bool
	Ref   string
}

type Event struct {
	Kind   EventKind
	Text   string
	Casino string
	Media  *Media
}

// Effect tells the driver what to render after a transition.
type Effect int

const (
	// EffectPrompt: show the prompt of the new state.
	EffectPrompt Effect = iota
	// EffectReprompt: the input was refused; repeat the current prompt with Outcome.Err.
	EffectReprompt
	// EffectAccepted: an attachment was stored; acknowledge with Outcome.Count.
	EffectAccepted
	// EffectSubmit: the claimant confirmed; the driver must finalize the draft.
	EffectSubmit
	// EffectCancelled: the draft is discarded.
	EffectCancelled
	// EffectHome: the claimant backed out of the first step.
	EffectHome
)

var (
	ErrValidation = errors.New("validation failed")
	ErrUnexpected = errors.New("unexpected input")
)

// ValidationError carries the reason shown to the claimant.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }
func (e *ValidationError) Unwrap() error { return ErrValidation }

type Attachment struct {
	Kind models.AttachmentKind
	Ref  string
}

type Draft struct {
	ID          string
	State       State
	CasinoCode  string
	CasinoName  string
	Spec        catalog.IdentifierSpec
	Identifier  string
	Deposits    []Attachment
	Withdrawals []Attachment
	UpdatedAt   time.Time
}

func NewDraft(id string, now time.Time) *Draft {
	return &Draft{ID: id, State: Idle, UpdatedAt: now}
}

// Attachments returns deposits followed by withdrawals.
func (d *Draft) Attachments() []Attachment {
	out := make([]Attachment, 0, len(d.Deposits)+len(d.Withdrawals))
	out = append(out, d.Deposits...)
	return append(out, d.Withdrawals...)
}

type Outcome struct {
	From   State
	To     State
	Effect Effect
	Err    error
	Count  int
}

// Casinos is the part of the catalog the wizard needs.
type Casinos interface {
	ListEnabled() []catalog.Casino
	Casino(code string) (catalog.Casino, error)
}

type Machine struct {
	casinos Casinos
	now     func() time.Time
}

func NewMachine(casinos Casinos) *Machine {
	return &Machine{casinos: casinos, now: time.Now}
}

func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

var doneWords = map[string]bool{"готово": true, "done": true, "ок": true, "ok": true}

const confirmWord = "подтверждаю"

func IsDoneText(s string) bool {
	return doneWords[strings.ToLower(strings.TrimSpace(s))]
}

func IsConfirmText(s string) bool {
	return strings.ToLower(strings.TrimSpace(s)) == confirmWord
}

// Fire applies ev to d. The draft is mutated only when the transition's
// guard accepts the event.
func (m *Machine) Fire(d *Draft, ev Event) Outcome {
	from := d.State
	ev = normalize(from, ev)

	tr, ok := table[key{from, ev.Kind}]
	if !ok {
		return Outcome{From: from, To: from, Effect: EffectReprompt, Err: ErrUnexpected}
	}
	if tr.guard != nil {
		if err := tr.guard(m, d, ev); err != nil {
			return Outcome{From: from, To: from, Effect: EffectReprompt, Err: err}
		}
	}
	if tr.apply != nil {
		tr.apply(m, d, ev)
	}
	d.State = tr.next
	d.UpdatedAt = m.now()

	out := Outcome{From: from, To: d.State, Effect: tr.effect}
	switch out.Effect {
	case EffectAccepted:
		if d.State == CollectingDeposits {
			out.Count = len(d.Deposits)
		} else {
			out.Count = len(d.Withdrawals)
		}
	case EffectCancelled, EffectHome:
		d.reset()
	}

	if d.State == SelectingCasino {
		if only, single := m.singleCasino(); single {
			if ev.Kind == EvBack {
				d.State = Idle
				d.reset()
				out.To, out.Effect = Idle, EffectHome
				return out
			}
			d.selectCasino(only)
			d.State = EnteringIdentifier
			out.To = EnteringIdentifier
		}
	}
	return out
}

// normalize maps the literal texts that stand in for buttons onto the
// button events.
func normalize(s State, ev Event) Event {
	if ev.Kind != EvText {
		return ev
	}
	switch s {
	case CollectingDeposits, CollectingWithdrawals:
		if IsDoneText(ev.Text) {
			return Event{Kind: EvDone}
		}
	case Confirming:
		if IsConfirmText(ev.Text) {
			return Event{Kind: EvConfirm}
		}
	}
	return ev
}

func (m *Machine) singleCasino() (catalog.Casino, bool) {
	list := m.casinos.ListEnabled()
	if len(list) == 1 {
		return list[0], true
	}
	return catalog.Casino{}, false
}

func (d *Draft) selectCasino(c catalog.Casino) {
	d.CasinoCode = c.Code
	d.CasinoName = c.Name
	d.Spec = c.Identifier
}

func (d *Draft) reset() {
	d.CasinoCode, d.CasinoName, d.Identifier = "", "", ""
	d.Spec = catalog.IdentifierSpec{}
	d.Deposits, d.Withdrawals = nil, nil
}

// ValidateIdentifier checks a claimant-supplied identifier against spec.
func ValidateIdentifier(spec catalog.IdentifierSpec, value string) (string, error) {
	v := strings.TrimSpace(value)
	switch spec.Kind {
	case models.IdentifierEmail:
		if v == "" || spec.Regex == nil || !spec.Regex.MatchString(v) {
			return "", &ValidationError{Reason: "это не похоже на email, пример: name@mail.com"}
		}
	default:
		if v == "" {
			return "", &ValidationError{Reason: "нужен ник — напиши его текстом"}
		}
		if utf8.RuneCountInString(v) < 2 {
			return "", &ValidationError{Reason: "ник слишком короткий (минимум 2 символа)"}
		}
	}
	return v, nil
}
