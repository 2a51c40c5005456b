package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cashback_bot/models"
)

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrReferrerNotFound = errors.New("referrer not found")
	ErrQuotaExceeded    = errors.New("active ticket quota exceeded")
	ErrBadIdentifier    = errors.New("identifier does not match its kind")
)

const codeRetries = 3

// Quota is checked inside the creating transaction.
type Quota struct {
	Statuses []models.TicketStatus
	Max      int
}

type NewAttachment struct {
	Kind   models.AttachmentKind
	FileID string
}

type NewTicket struct {
	UserID         uint
	CasinoCode     string
	IdentifierKind models.IdentifierKind
	Identifier     string
	Attachments    []NewAttachment
	Quota          *Quota
}

// ActiveTicket is the row shown when a claimant hits the quota.
type ActiveTicket struct {
	Code      string
	Status    models.TicketStatus
	CreatedAt time.Time
}

type TicketStore struct {
	db  *gorm.DB
	mu  sync.Mutex
	now func() time.Time
}

func NewTicketStore(conn *gorm.DB) *TicketStore {
	return &TicketStore{db: conn, now: time.Now}
}

// SetClock replaces the time source used for codes and timestamps.
func (s *TicketStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TicketStore) CreateReferrer(ctx context.Context, code, title string) (*models.Referrer, error) {
	r := &models.Referrer{Code: strings.TrimSpace(code), Title: title}
	if r.Code == "" {
		return nil, errors.New("referrer code is empty")
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("create referrer: %w", err)
	}
	return r, nil
}

func (s *TicketStore) FindReferrerByCode(ctx context.Context, code string) (*models.Referrer, error) {
	var r models.Referrer
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReferrerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TicketStore) CreateUser(ctx context.Context, tgID int64, username string, referrerID *uint) (*models.User, error) {
	u := &models.User{TgID: tgID, Username: username, ReferrerID: referrerID, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *TicketStore) FindUser(ctx context.Context, tgID int64) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("tg_id = ?", tgID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindOrCreateUser refreshes the username of a known user. A new user is
// linked to the referrer named by refCode when that code exists.
func (s *TicketStore) FindOrCreateUser(ctx context.Context, tgID int64, username, refCode string) (*models.User, error) {
	u, err := s.FindUser(ctx, tgID)
	if err == nil {
		if u.Username != username {
			u.Username = username
			if err := s.db.WithContext(ctx).Model(u).Update("username", username).Error; err != nil {
				return nil, fmt.Errorf("refresh username: %w", err)
			}
		}
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	var referrerID *uint
	if refCode != "" {
		if r, err := s.FindReferrerByCode(ctx, refCode); err == nil {
			referrerID = &r.ID
		}
	}
	u, err = s.CreateUser(ctx, tgID, username, referrerID)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.FindUser(ctx, tgID)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// NextDailyCode previews the code the next ticket created today would get.
func (s *TicketStore) NextDailyCode(ctx context.Context) (string, error) {
	return s.nextCode(s.db.WithContext(ctx))
}

func (s *TicketStore) nextCode(tx *gorm.DB) (string, error) {
	prefix := "TCK-" + s.now().Format("20060102") + "-"
	var n int64
	if err := tx.Model(&models.Ticket{}).Where("code LIKE ?", prefix+"%").Count(&n).Error; err != nil {
		return "", fmt.Errorf("count today's tickets: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, n+1), nil
}

// CreateTicket assigns the daily code, checks the quota and writes the ticket
// with all of its attachments in one transaction. Creation is serialized
// in-process; a unique-code collision with another process is retried.
func (s *TicketStore) CreateTicket(ctx context.Context, nt NewTicket) (*models.Ticket, error) {
	if err := nt.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		t   *models.Ticket
		err error
	)
	for attempt := 0; attempt < codeRetries; attempt++ {
		t, err = s.createOnce(ctx, nt)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	return t, err
}

func (s *TicketStore) createOnce(ctx context.Context, nt NewTicket) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, nt.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if nt.Quota != nil {
			n, err := countActive(tx, user.ID, nt.Quota.Statuses)
			if err != nil {
				return err
			}
			if n >= int64(nt.Quota.Max) {
				return ErrQuotaExceeded
			}
		}

		code, err := s.nextCode(tx)
		if err != nil {
			return err
		}
		now := s.now()
		t = models.Ticket{
			Code:           code,
			UserID:         user.ID,
			ReferrerID:     user.ReferrerID,
			CasinoCode:     nt.CasinoCode,
			IdentifierKind: nt.IdentifierKind,
			Status:         models.StatusNew,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if nt.IdentifierKind == models.IdentifierEmail {
			t.Email = null.StringFrom(nt.Identifier)
		} else {
			t.Nickname = null.StringFrom(nt.Identifier)
		}
		if err := tx.Omit(clause.Associations).Create(&t).Error; err != nil {
			return err
		}

		atts := make([]models.Attachment, 0, len(nt.Attachments))
		for _, a := range nt.Attachments {
			atts = append(atts, models.Attachment{TicketID: t.ID, Kind: a.Kind, FileID: a.FileID, CreatedAt: now})
		}
		if len(atts) > 0 {
			if err := tx.Create(&atts).Error; err != nil {
				return fmt.Errorf("attachments: %w", err)
			}
		}
		t.Attachments = atts
		t.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (nt NewTicket) validate() error {
	if nt.CasinoCode == "" {
		return errors.New("casino code is empty")
	}
	if strings.TrimSpace(nt.Identifier) == "" {
		return ErrBadIdentifier
	}
	switch nt.IdentifierKind {
	case models.IdentifierNickname, models.IdentifierEmail:
	default:
		return fmt.Errorf("%w: kind %q", ErrBadIdentifier, nt.IdentifierKind)
	}
	for _, a := range nt.Attachments {
		if a.FileID == "" {
			return errors.New("attachment without file id")
		}
	}
	return nil
}

func (s *TicketStore) FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.WithContext(ctx).Preload("User").Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTicketsForUser returns the claimant's tickets newest first.
func (s *TicketStore) ListTicketsForUser(ctx context.Context, tgID int64) ([]models.Ticket, error) {
	var items []models.Ticket
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = tickets.user_id").
		Where("users.tg_id = ?", tgID).
		Order("tickets.id DESC").
		Find(&items).Error
	return items, err
}

func (s *TicketStore) LatestTicketForUser(ctx context.Context, tgID int64) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = tickets.user_id").
		Where("users.tg_id = ?", tgID).
		Order("tickets.id DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TicketStore) CountActive(ctx context.Context, tgID int64, statuses []models.TicketStatus) (int64, error) {
	u, err := s.FindUser(ctx, tgID)
	if errors.Is(err, ErrUserNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return countActive(s.db.WithContext(ctx), u.ID, statuses)
}

func countActive(tx *gorm.DB, userID uint, statuses []models.TicketStatus) (int64, error) {
	var n int64
	err := tx.Model(&models.Ticket{}).
		Where("user_id = ? AND status IN ?", userID, statuses).
		Count(&n).Error
	return n, err
}

// ListActive returns active tickets newest first.
func (s *TicketStore) ListActive(ctx context.Context, tgID int64, statuses []models.TicketStatus) ([]ActiveTicket, error) {
	var items []ActiveTicket
	err := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Select("tickets.code, tickets.status, tickets.created_at").
		Joins("JOIN users ON users.id = tickets.user_id").
		Where("users.tg_id = ? AND tickets.status IN ?", tgID, statuses).
		Order("tickets.id DESC").
		Scan(&items).Error
	return items, err
}

// ListTickets pages over all tickets newest first; no statuses means all.
func (s *TicketStore) ListTickets(ctx context.Context, statuses []models.TicketStatus, limit, offset int) ([]models.Ticket, error) {
	var items []models.Ticket
	tx := s.db.WithContext(ctx).Model(&models.Ticket{})
	if len(statuses) > 0 {
		tx = tx.Where("status IN ?", statuses)
	}
	err := tx.Order("id DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, err
}

// UpdateStatus sets the status and returns the refreshed ticket.
func (s *TicketStore) UpdateStatus(ctx context.Context, code string, status models.TicketStatus) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	t, err := s.FindTicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{"status": status, "updated_at": now}).Error
	if err != nil {
		return nil, err
	}
	t.Status, t.UpdatedAt = status, now
	return t, nil
}

func (s *TicketStore) AppendMessage(ctx context.Context, ticketID uint, sender models.Sender, text, fileID string) error {
	m := &models.Message{
		TicketID:  ticketID,
		Sender:    sender,
		Text:      null.NewString(text, text != ""),
		FileID:    null.NewString(fileID, fileID != ""),
		CreatedAt: s.now(),
	}
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *TicketStore) ListMessages(ctx context.Context, ticketID uint) ([]models.Message, error) {
	var items []models.Message
	err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("id").Find(&items).Error
	return items, err
}

func (s *TicketStore) ListAttachments(ctx context.Context, ticketID uint) ([]models.Attachment, error) {
	var items []models.Attachment
	err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("id").Find(&items).Error
	return items, err
}
