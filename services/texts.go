package services

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"cashback_bot/claim"
	"cashback_bot/db"
	"cashback_bot/models"
)

const (
	timeLayout     = "2006-01-02 15:04"
	rejectFallback = "Причина не указана"
	myTicketsLabel = "🧾 Мои заявки"
)

var statusEmoji = map[models.TicketStatus]string{
	models.StatusNew:       "🟡",
	models.StatusNeedsInfo: "🟠",
	models.StatusApproved:  "🟢",
	models.StatusRejected:  "🔴",
	models.StatusPaid:      "💎",
}

func statusIcon(s models.TicketStatus) string {
	if icon, ok := statusEmoji[s]; ok {
		return icon
	}
	return "📌"
}

// casinoName falls back to the code for casinos no longer in the catalog.
func casinoName(casinos CasinoCatalog, code string) string {
	if c, err := casinos.Casino(code); err == nil && c.Name != "" {
		return c.Name
	}
	return code
}

func ticketBrief(t *models.Ticket, casinos CasinoCatalog) string {
	parts := []string{fmt.Sprintf("%s <b>%s</b> — %s", statusIcon(t.Status), t.Code, strings.ToUpper(string(t.Status)))}
	if t.CasinoCode != "" {
		parts = append(parts, fmt.Sprintf("🎰 Казино: %s", html.EscapeString(casinoName(casinos, t.CasinoCode))))
	}
	if id := t.Identifier(); id != "" {
		label := "🎮 Ник"
		if t.IdentifierKind == models.IdentifierEmail {
			label = "📧 Email"
		}
		parts = append(parts, fmt.Sprintf("%s: <code>%s</code>", label, html.EscapeString(id)))
	}
	parts = append(parts, "🗓 Создан: "+t.CreatedAt.Format(timeLayout))
	return strings.Join(parts, "\n")
}

func newTicketNotice(t *models.Ticket, casinos CasinoCatalog, deposits, withdrawals int, username string) string {
	who := "@" + username
	if username == "" {
		who = fmt.Sprintf("%d", t.User.TgID)
	}
	return fmt.Sprintf("🆕 Новая заявка на кешбек\n%s\n💳 Депозиты: %d | 📤 Выводы: %d\n👤 Пользователь: %s",
		ticketBrief(t, casinos), deposits, withdrawals, html.EscapeString(who))
}

func activeListText(active []db.ActiveTicket, max int) string {
	lines := []string{fmt.Sprintf("❗ У тебя уже есть активные заявки (максимум %d):", max)}
	for _, a := range active {
		lines = append(lines, fmt.Sprintf("— <code>%s</code> · %s · %s", a.Code, a.Status, a.CreatedAt.Format(timeLayout)))
	}
	lines = append(lines, "Когда одна из них закроется — можно будет создать новую.")
	return strings.Join(lines, "\n")
}

func welcomeText() string {
	return "🎰💸 Добро пожаловать! Здесь ты можешь получить кешбек по депозитам.\nВыбери действие ниже:"
}

func userHelpText() string {
	return "🪙 /cashback — подать заявку на кешбек.\n/my или кнопка «" + myTicketsLabel + "» — статус заявок.\n/cancel — отменить начатую заявку."
}

func operatorHelpText(paid bool) string {
	lines := []string{
		"<b>🛠 Админ-команды</b>",
		"/tickets — заявки <i>в ожидании</i> (new+needs_info)",
		"/tickets new — только NEW",
		"/tickets needs_info — только NEEDS_INFO",
		"/tickets approved — одобренные",
		"/tickets rejected — отклонённые",
	}
	if paid {
		lines = append(lines, "/tickets paid — выплаченные")
	}
	lines = append(lines,
		"/tickets all — все подряд",
		"/ticket <code>КОД</code> — открыть конкретный тикет",
		"/files <code>КОД</code> — показать вложения тикета",
	)
	return strings.Join(lines, "\n")
}

// promptText is what the claimant sees on entering d.State.
func promptText(d *claim.Draft) string {
	switch d.State {
	case claim.SelectingCasino:
		return "🎰 Выбери казино, по которому нужен кешбек:"
	case claim.EnteringIdentifier:
		return fmt.Sprintf("✍️ Напиши <b>%s</b> (%s):", html.EscapeString(d.Spec.Label), html.EscapeString(d.CasinoName))
	case claim.CollectingDeposits:
		return "💳 Пришли скриншоты <b>депозитов</b> (фото или файл). Можно несколько.\nКогда закончишь — нажми <b>✅ Готово</b>."
	case claim.CollectingWithdrawals:
		return "📤 Теперь пришли <b>скрин(ы) вкладки «Выводы»</b> — даже если она пустая. Можно несколько.\nКогда загрузишь — жми <b>✅ Готово</b>."
	case claim.Confirming:
		label := "🎮 Ник"
		if d.Spec.Kind == models.IdentifierEmail {
			label = "📧 Email"
		}
		return fmt.Sprintf("🔎 Проверь заявку:\n🎰 Казино: <b>%s</b>\n%s: <b>%s</b>\n💳 Скриншотов депозитов: <b>%d</b>\n📤 Скриншотов выводов: <b>%d</b>\n\nЕсли всё верно — нажми <b>📤 Отправить сейчас</b> или напиши <b>подтверждаю</b>.",
			html.EscapeString(d.CasinoName), label, html.EscapeString(d.Identifier), len(d.Deposits), len(d.Withdrawals))
	}
	return "🏠 Главное меню:"
}

// hintText re-prompts after input the current step cannot use.
func hintText(d *claim.Draft) string {
	switch d.State {
	case claim.SelectingCasino:
		return "Выбери казино кнопкой ниже."
	case claim.EnteringIdentifier:
		return fmt.Sprintf("Нужен %s — напиши его текстом.", html.EscapeString(d.Spec.Label))
	case claim.CollectingDeposits:
		return "Если закончил с депозитами — нажми <b>✅ Готово</b>."
	case claim.CollectingWithdrawals:
		return "Если закончил с выводами — нажми <b>✅ Готово</b>."
	case claim.Confirming:
		return "Чтобы подтвердить — нажми <b>📤 Отправить сейчас</b> или напиши <b>подтверждаю</b>."
	}
	return "Не понял. Нажми /help."
}

func acceptedText(d *claim.Draft, n int) string {
	what := "Депозитных скринов"
	if d.State == claim.CollectingWithdrawals {
		what = "Скринов выводов"
	}
	return fmt.Sprintf("✅ Принято! %s: <b>%d</b>.\nМожно добавить ещё или жми <b>✅ Готово</b>.", what, n)
}

func listHeader(filter string) string {
	if filter == filterPending {
		return "<b>📚 Заявки (в ожидании)</b>"
	}
	return fmt.Sprintf("<b>📚 Заявки (%s)</b>", filter)
}

func listLine(i int, t *models.Ticket, casinos CasinoCatalog) string {
	id := t.Identifier()
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("%d. %s <code>%s</code> — %s | %s | %s | %s",
		i, statusIcon(t.Status), t.Code, strings.ToUpper(string(t.Status)),
		html.EscapeString(casinoName(casinos, t.CasinoCode)), html.EscapeString(id), t.CreatedAt.Format(timeLayout))
}

// operatorErrorText is the terse failure shown to operators.
func operatorErrorText(err error) string {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		return "⚠️ Тикет не найден."
	case errors.Is(err, ErrTransition):
		return "⛔ Для этой заявки такое действие уже недоступно."
	case errors.Is(err, ErrUnauthorized):
		return "Только для админов"
	}
	return "❌ Ошибка: " + html.EscapeString(err.Error())
}
