package services

import (
	"context"
	"errors"

	"cashback_bot/catalog"
	"cashback_bot/claim"
	"cashback_bot/db"
	"cashback_bot/models"
)

var (
	ErrValidation     = claim.ErrValidation
	ErrQuotaExceeded  = db.ErrQuotaExceeded
	ErrTicketNotFound = db.ErrTicketNotFound
	ErrUnauthorized   = errors.New("operator only")
	ErrTransition     = errors.New("transition not allowed")
)

// Button is one inline control; Data is the token delivered back on press.
type Button struct {
	Text string
	Data string
}

type Keyboard [][]Button

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

type Media struct {
	Kind    MediaKind
	Ref     string
	Caption string
}

// Press is a control press; ID must be answered.
type Press struct {
	ID        string
	Data      string
	MessageID int
}

// Inbound is one normalized chat event: either a message or a press.
type Inbound struct {
	SenderID int64
	ChatID   int64
	Username string
	Text     string
	Caption  string
	Command  string
	Args     string
	Media    *Media
	Press    *Press
}

// ChatGateway is the outbound side of the messenger.
type ChatGateway interface {
	SendText(chatID int64, text string, kb Keyboard) (int, error)
	SendMedia(chatID int64, m Media) error
	SendMediaBatch(chatID int64, items []Media) error
	EditText(chatID int64, msgID int, text string, kb Keyboard) error
	EditControls(chatID int64, msgID int, kb Keyboard) error
	AnswerPress(pressID, text string, alert bool) error
}

type TicketStore interface {
	FindOrCreateUser(ctx context.Context, tgID int64, username, refCode string) (*models.User, error)
	CreateTicket(ctx context.Context, nt db.NewTicket) (*models.Ticket, error)
	FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	ListTicketsForUser(ctx context.Context, tgID int64) ([]models.Ticket, error)
	LatestTicketForUser(ctx context.Context, tgID int64) (*models.Ticket, error)
	CountActive(ctx context.Context, tgID int64, statuses []models.TicketStatus) (int64, error)
	ListActive(ctx context.Context, tgID int64, statuses []models.TicketStatus) ([]db.ActiveTicket, error)
	ListTickets(ctx context.Context, statuses []models.TicketStatus, limit, offset int) ([]models.Ticket, error)
	UpdateStatus(ctx context.Context, code string, status models.TicketStatus) (*models.Ticket, error)
	AppendMessage(ctx context.Context, ticketID uint, sender models.Sender, text, fileID string) error
	ListAttachments(ctx context.Context, ticketID uint) ([]models.Attachment, error)
}

type CasinoCatalog interface {
	ListEnabled() []catalog.Casino
	Casino(code string) (catalog.Casino, error)
	IdentifierSpec(code string) (catalog.IdentifierSpec, error)
}

// TicketEvents receives lifecycle events. Publishing is best effort.
type TicketEvents interface {
	Publish(ctx context.Context, event string, t *models.Ticket)
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, string, *models.Ticket) {}
