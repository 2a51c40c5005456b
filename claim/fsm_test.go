package claim

import (
	"errors"
	"testing"
	"time"

	"cashback_bot/catalog"
	"cashback_bot/models"
)

var fixed = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newMachine(t *testing.T, c *catalog.Catalog) *Machine {
	t.Helper()
	m := NewMachine(c)
	m.SetClock(func() time.Time { return fixed })
	return m
}

func photo(ref string) Event { return Event{Kind: EvMedia, Media: &Media{Photo: true, Ref: ref}} }
func doc(ref string) Event   { return Event{Kind: EvMedia, Media: &Media{Ref: ref}} }
func text(s string) Event    { return Event{Kind: EvText, Text: s} }

func fire(t *testing.T, m *Machine, d *Draft, ev Event, want State) Outcome {
	t.Helper()
	out := m.Fire(d, ev)
	if d.State != want {
		t.Fatalf("after event %d: state = %s, want %s (err %v)", ev.Kind, d.State, want, out.Err)
	}
	return out
}

func TestHappyPath(t *testing.T) {
	m := newMachine(t, catalog.Default())
	d := NewDraft("d1", fixed.Add(-time.Hour))

	fire(t, m, d, Event{Kind: EvStart}, SelectingCasino)
	fire(t, m, d, Event{Kind: EvSelectCasino, Casino: "shuffle"}, EnteringIdentifier)
	if d.CasinoName != "Shuffle" || d.Spec.Kind != models.IdentifierNickname {
		t.Fatalf("casino not selected: %+v", d)
	}
	fire(t, m, d, text("  Player123 "), CollectingDeposits)
	if d.Identifier != "Player123" {
		t.Errorf("identifier = %q", d.Identifier)
	}

	out := fire(t, m, d, photo("p1"), CollectingDeposits)
	if out.Effect != EffectAccepted || out.Count != 1 {
		t.Errorf("unexpected outcome %+v", out)
	}
	out = fire(t, m, d, doc("f1"), CollectingDeposits)
	if out.Count != 2 {
		t.Errorf("count = %d", out.Count)
	}
	fire(t, m, d, text("Готово"), CollectingWithdrawals)
	fire(t, m, d, photo("w1"), CollectingWithdrawals)
	fire(t, m, d, Event{Kind: EvDone}, Confirming)

	out = fire(t, m, d, text("ПОДТВЕРЖДАЮ"), Confirming)
	if out.Effect != EffectSubmit {
		t.Errorf("expected submit, got %+v", out)
	}

	atts := d.Attachments()
	want := []Attachment{
		{Kind: models.DepositPhoto, Ref: "p1"},
		{Kind: models.DepositDoc, Ref: "f1"},
		{Kind: models.WithdrawPhoto, Ref: "w1"},
	}
	if len(atts) != len(want) {
		t.Fatalf("attachments = %+v", atts)
	}
	for i := range want {
		if atts[i] != want[i] {
			t.Errorf("attachment %d = %+v, want %+v", i, atts[i], want[i])
		}
	}
	if !d.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt not refreshed: %v", d.UpdatedAt)
	}
}

func TestIdentifierValidation(t *testing.T) {
	m := newMachine(t, catalog.Default())

	t.Run("short nickname", func(t *testing.T) {
		d := NewDraft("d", fixed)
		m.Fire(d, Event{Kind: EvStart})
		m.Fire(d, Event{Kind: EvSelectCasino, Casino: "stake"})
		out := fire(t, m, d, text(" a "), EnteringIdentifier)
		var ve *ValidationError
		if !errors.As(out.Err, &ve) || !errors.Is(out.Err, ErrValidation) {
			t.Errorf("expected ValidationError, got %v", out.Err)
		}
		if out.Effect != EffectReprompt || d.Identifier != "" {
			t.Errorf("draft must not change: %+v", d)
		}
		fire(t, m, d, text("ab"), CollectingDeposits)
	})

	t.Run("email", func(t *testing.T) {
		d := NewDraft("d", fixed)
		m.Fire(d, Event{Kind: EvStart})
		m.Fire(d, Event{Kind: EvSelectCasino, Casino: "gamdom"})
		fire(t, m, d, text("not-an-email"), EnteringIdentifier)
		fire(t, m, d, text("Player@Mail.com"), CollectingDeposits)
		if d.Identifier != "Player@Mail.com" {
			t.Errorf("identifier = %q", d.Identifier)
		}
	})

	t.Run("unknown casino", func(t *testing.T) {
		d := NewDraft("d", fixed)
		m.Fire(d, Event{Kind: EvStart})
		out := fire(t, m, d, Event{Kind: EvSelectCasino, Casino: "nope"}, SelectingCasino)
		if !errors.Is(out.Err, ErrValidation) {
			t.Errorf("expected validation error, got %v", out.Err)
		}
	})
}

func TestDoneRequiresEvidence(t *testing.T) {
	m := newMachine(t, catalog.Default())

	start := func() *Draft {
		d := NewDraft("d", fixed)
		m.Fire(d, Event{Kind: EvStart})
		m.Fire(d, Event{Kind: EvSelectCasino, Casino: "shuffle"})
		m.Fire(d, text("nick"))
		return d
	}

	d := start()
	out := fire(t, m, d, Event{Kind: EvDone}, CollectingDeposits)
	if !errors.Is(out.Err, ErrValidation) {
		t.Errorf("done with no deposits should fail, got %v", out.Err)
	}

	// withdrawals can never be completed empty, whatever came before
	orderings := map[string][]Event{
		"one deposit":        {photo("a")},
		"several deposits":   {photo("a"), doc("b"), photo("c")},
		"back and forth":     {photo("a"), {Kind: EvDone}, {Kind: EvBack}, doc("b")},
		"text noise":         {text("hello"), photo("a"), text("?")},
		"media without ref":  {photo("a"), {Kind: EvMedia}},
		"cyrillic done word": {photo("a"), text("ОК")},
	}
	for name, events := range orderings {
		t.Run(name, func(t *testing.T) {
			d := start()
			for _, ev := range events {
				m.Fire(d, ev)
			}
			if d.State == CollectingDeposits {
				fire(t, m, d, text("ok"), CollectingWithdrawals)
			}
			out := fire(t, m, d, text("done"), CollectingWithdrawals)
			if !errors.Is(out.Err, ErrValidation) || len(d.Withdrawals) != 0 {
				t.Errorf("empty withdrawals accepted: %+v", out)
			}
			out = fire(t, m, d, Event{Kind: EvConfirm}, CollectingWithdrawals)
			if out.Effect != EffectReprompt {
				t.Errorf("confirm outside Confirming must be refused: %+v", out)
			}
		})
	}
}

func TestBackAndCancel(t *testing.T) {
	m := newMachine(t, catalog.Default())
	d := NewDraft("d", fixed)
	m.Fire(d, Event{Kind: EvStart})
	m.Fire(d, Event{Kind: EvSelectCasino, Casino: "shuffle"})
	m.Fire(d, text("nick"))
	m.Fire(d, photo("a"))
	m.Fire(d, Event{Kind: EvDone})
	m.Fire(d, photo("b"))
	m.Fire(d, Event{Kind: EvDone})

	fire(t, m, d, Event{Kind: EvBack}, CollectingWithdrawals)
	fire(t, m, d, Event{Kind: EvBack}, CollectingDeposits)
	fire(t, m, d, Event{Kind: EvBack}, EnteringIdentifier)
	if d.Identifier != "nick" {
		t.Errorf("identifier should survive back into its own step")
	}
	fire(t, m, d, Event{Kind: EvBack}, SelectingCasino)
	if d.Identifier != "" {
		t.Errorf("identifier should be cleared when leaving its step")
	}
	out := fire(t, m, d, Event{Kind: EvBack}, Idle)
	if out.Effect != EffectHome {
		t.Errorf("expected home effect, got %+v", out)
	}

	for _, s := range []State{SelectingCasino, EnteringIdentifier, CollectingDeposits, CollectingWithdrawals, Confirming} {
		d := &Draft{State: s, CasinoCode: "shuffle", Deposits: []Attachment{{Ref: "x"}}}
		out := fire(t, m, d, Event{Kind: EvCancel}, Idle)
		if out.Effect != EffectCancelled || d.CasinoCode != "" || d.Deposits != nil {
			t.Errorf("cancel from %s left %+v", s, d)
		}
	}

	idle := NewDraft("d", fixed)
	if out := m.Fire(idle, Event{Kind: EvCancel}); !errors.Is(out.Err, ErrUnexpected) {
		t.Errorf("cancel from idle should be unexpected, got %+v", out)
	}
}

func TestSingleCasinoSkipsSelection(t *testing.T) {
	c, err := catalog.Parse([]byte(`[{"code":"solo","name":"Solo"},{"code":"off","enabled":false}]`))
	if err != nil {
		t.Fatal(err)
	}
	m := newMachine(t, c)
	d := NewDraft("d", fixed)

	fire(t, m, d, Event{Kind: EvStart}, EnteringIdentifier)
	if d.CasinoCode != "solo" {
		t.Errorf("casino = %q", d.CasinoCode)
	}
	out := fire(t, m, d, Event{Kind: EvBack}, Idle)
	if out.Effect != EffectHome {
		t.Errorf("back from the first real step should go home, got %+v", out)
	}
}

func TestUnexpectedInputLeavesDraft(t *testing.T) {
	m := newMachine(t, catalog.Default())
	d := NewDraft("d", fixed)
	m.Fire(d, Event{Kind: EvStart})

	out := fire(t, m, d, text("shuffle"), SelectingCasino)
	if !errors.Is(out.Err, ErrUnexpected) {
		t.Errorf("free text at casino step: %v", out.Err)
	}
	m.Fire(d, Event{Kind: EvSelectCasino, Casino: "shuffle"})
	out = fire(t, m, d, photo("p"), EnteringIdentifier)
	if !errors.Is(out.Err, ErrUnexpected) || d.Identifier != "" {
		t.Errorf("media at identifier step: %+v", out)
	}
}

func TestStateNames(t *testing.T) {
	for s, name := range stateNames {
		got, ok := ParseState(name)
		if !ok || got != s || s.String() != name {
			t.Errorf("round trip failed for %s", name)
		}
	}
	if _, ok := ParseState("bogus"); ok {
		t.Error("ParseState accepted an unknown name")
	}
}
