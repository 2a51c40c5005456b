package claim

import (
	"cashback_bot/models"
)

type key struct {
	state State
	event EventKind
}

type transition struct {
	guard  func(m *Machine, d *Draft, ev Event) error
	apply  func(m *Machine, d *Draft, ev Event)
	next   State
	effect Effect
}

var (
	errNoDeposits    = &ValidationError{Reason: "нужен хотя бы один скрин депозита"}
	errNoWithdrawals = &ValidationError{Reason: "нужен хотя бы один скрин вывода"}
	errNoMedia       = &ValidationError{Reason: "пришли скрин фото или файлом"}
	errNoCasino      = &ValidationError{Reason: "такого казино нет в списке"}
)

// table lists every legal (state, event) pair. Anything missing is refused
// with ErrUnexpected and leaves the draft untouched.
var table = map[key]transition{
	{SelectingCasino, EvSelectCasino}: {
		guard: func(m *Machine, _ *Draft, ev Event) error {
			if _, err := m.casinos.Casino(ev.Casino); err != nil {
				return errNoCasino
			}
			return nil
		},
		apply: func(m *Machine, d *Draft, ev Event) {
			c, _ := m.casinos.Casino(ev.Casino)
			d.selectCasino(c)
		},
		next:   EnteringIdentifier,
		effect: EffectPrompt,
	},
	{SelectingCasino, EvBack}: {next: Idle, effect: EffectHome},

	{EnteringIdentifier, EvText}: {
		guard: func(_ *Machine, d *Draft, ev Event) error {
			_, err := ValidateIdentifier(d.Spec, ev.Text)
			return err
		},
		apply: func(_ *Machine, d *Draft, ev Event) {
			d.Identifier, _ = ValidateIdentifier(d.Spec, ev.Text)
		},
		next:   CollectingDeposits,
		effect: EffectPrompt,
	},
	{EnteringIdentifier, EvBack}: {
		apply:  func(_ *Machine, d *Draft, _ Event) { d.Identifier = "" },
		next:   SelectingCasino,
		effect: EffectPrompt,
	},

	{CollectingDeposits, EvMedia}: {
		guard: requireMedia,
		apply: func(_ *Machine, d *Draft, ev Event) {
			kind := models.DepositDoc
			if ev.Media.Photo {
				kind = models.DepositPhoto
			}
			d.Deposits = append(d.Deposits, Attachment{Kind: kind, Ref: ev.Media.Ref})
		},
		next:   CollectingDeposits,
		effect: EffectAccepted,
	},
	{CollectingDeposits, EvDone}: {
		guard: func(_ *Machine, d *Draft, _ Event) error {
			if len(d.Deposits) == 0 {
				return errNoDeposits
			}
			return nil
		},
		next:   CollectingWithdrawals,
		effect: EffectPrompt,
	},
	{CollectingDeposits, EvBack}: {next: EnteringIdentifier, effect: EffectPrompt},

	{CollectingWithdrawals, EvMedia}: {
		guard: requireMedia,
		apply: func(_ *Machine, d *Draft, ev Event) {
			kind := models.WithdrawDoc
			if ev.Media.Photo {
				kind = models.WithdrawPhoto
			}
			d.Withdrawals = append(d.Withdrawals, Attachment{Kind: kind, Ref: ev.Media.Ref})
		},
		next:   CollectingWithdrawals,
		effect: EffectAccepted,
	},
	{CollectingWithdrawals, EvDone}: {
		guard:  requireEvidence,
		next:   Confirming,
		effect: EffectPrompt,
	},
	{CollectingWithdrawals, EvBack}: {next: CollectingDeposits, effect: EffectPrompt},

	{Confirming, EvConfirm}: {
		guard: func(m *Machine, d *Draft, ev Event) error {
			if d.CasinoCode == "" || d.Identifier == "" {
				return ErrUnexpected
			}
			return requireEvidence(m, d, ev)
		},
		next:   Confirming,
		effect: EffectSubmit,
	},
	{Confirming, EvBack}: {next: CollectingWithdrawals, effect: EffectPrompt},
}

func init() {
	restart := transition{
		apply:  func(_ *Machine, d *Draft, _ Event) { d.reset() },
		next:   SelectingCasino,
		effect: EffectPrompt,
	}
	for s := range stateNames {
		table[key{s, EvStart}] = restart
		if s != Idle {
			table[key{s, EvCancel}] = transition{next: Idle, effect: EffectCancelled}
		}
	}
}

func requireMedia(_ *Machine, _ *Draft, ev Event) error {
	if ev.Media == nil || ev.Media.Ref == "" {
		return errNoMedia
	}
	return nil
}

func requireEvidence(_ *Machine, d *Draft, _ Event) error {
	if len(d.Deposits) == 0 {
		return errNoDeposits
	}
	if len(d.Withdrawals) == 0 {
		return errNoWithdrawals
	}
	return nil
}
