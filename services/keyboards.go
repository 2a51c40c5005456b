package services

import (
	"fmt"
	"strconv"
	"strings"

	"cashback_bot/claim"
)

const (
	tokenNewClaim  = "cb:new"
	tokenMyTickets = "cb:list"

	prefixWizard   = "wz:"
	prefixOperator = "adm:"
	prefixList     = "adm_list:"
)

// Operator actions carried in "adm:<code>:<action>" tokens.
const (
	actApprove  = "approve"
	actReject   = "reject"
	actNeedInfo = "needinfo"
	actReply    = "reply"
	actFiles    = "files"
	actPaid     = "paid"
)

// Wizard verbs carried in "wz:<state>:<verb>[:<arg>]" tokens.
const (
	verbPick   = "pick"
	verbDone   = "done"
	verbBack   = "back"
	verbCancel = "cancel"
	verbSend   = "send"
)

func mainMenu() Keyboard {
	return Keyboard{
		{{Text: "🎁 Подать заявку на кешбек", Data: tokenNewClaim}},
		{{Text: myTicketsLabel, Data: tokenMyTickets}},
	}
}

func wizardToken(s claim.State, verb string, arg ...string) string {
	tok := prefixWizard + s.String() + ":" + verb
	if len(arg) > 0 {
		tok += ":" + arg[0]
	}
	return tok
}

type wizardPress struct {
	State claim.State
	Verb  string
	Arg   string
}

func parseWizardToken(data string) (wizardPress, bool) {
	parts := strings.SplitN(strings.TrimPrefix(data, prefixWizard), ":", 3)
	if len(parts) < 2 {
		return wizardPress{}, false
	}
	s, ok := claim.ParseState(parts[0])
	if !ok {
		return wizardPress{}, false
	}
	p := wizardPress{State: s, Verb: parts[1]}
	if len(parts) == 3 {
		p.Arg = parts[2]
	}
	return p, true
}

func navRow(s claim.State) []Button {
	return []Button{
		{Text: "⬅️ Назад", Data: wizardToken(s, verbBack)},
		{Text: "❌ Отмена", Data: wizardToken(s, verbCancel)},
	}
}

// wizardKeyboard renders the controls for the step d is in.
func wizardKeyboard(d *claim.Draft, casinos CasinoCatalog) Keyboard {
	switch d.State {
	case claim.SelectingCasino:
		var kb Keyboard
		for _, c := range casinos.ListEnabled() {
			kb = append(kb, []Button{{Text: "🎰 " + c.Name, Data: wizardToken(d.State, verbPick, c.Code)}})
		}
		return append(kb, navRow(d.State))
	case claim.EnteringIdentifier:
		return Keyboard{navRow(d.State)}
	case claim.CollectingDeposits, claim.CollectingWithdrawals:
		return Keyboard{
			{{Text: "✅ Готово", Data: wizardToken(d.State, verbDone)}},
			navRow(d.State),
		}
	case claim.Confirming:
		return Keyboard{
			{{Text: "📤 Отправить сейчас", Data: wizardToken(d.State, verbSend)}},
			navRow(d.State),
		}
	}
	return mainMenu()
}

func operatorToken(code, action string) string {
	return prefixOperator + code + ":" + action
}

func parseOperatorToken(data string) (code, action string, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(data, prefixOperator), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func operatorKeyboard(code string, paid bool) Keyboard {
	kb := Keyboard{
		{
			{Text: "✅ Одобрить", Data: operatorToken(code, actApprove)},
			{Text: "❌ Отклонить", Data: operatorToken(code, actReject)},
		},
		{
			{Text: "ℹ️ Запросить инфо", Data: operatorToken(code, actNeedInfo)},
			{Text: "💬 Ответить", Data: operatorToken(code, actReply)},
		},
		{{Text: "📎 Скриншоты", Data: operatorToken(code, actFiles)}},
	}
	if paid {
		kb = append(kb, []Button{{Text: "💎 Выплачено", Data: operatorToken(code, actPaid)}})
	}
	return kb
}

func listToken(filter string, offset int) string {
	return fmt.Sprintf("%s%s:%d", prefixList, filter, offset)
}

func parseListToken(data string) (filter string, offset int, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(data, prefixList), ":", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return "", 0, false
	}
	return parts[0], offset, true
}

func pagingKeyboard(filter string, offset, pageSize int, more bool) Keyboard {
	var row []Button
	if offset > 0 {
		prev := offset - pageSize
		if prev < 0 {
			prev = 0
		}
		row = append(row, Button{Text: "◀️ Назад", Data: listToken(filter, prev)})
	}
	if more {
		row = append(row, Button{Text: "▶️ Дальше", Data: listToken(filter, offset+pageSize)})
	}
	if len(row) == 0 {
		return nil
	}
	return Keyboard{row}
}
