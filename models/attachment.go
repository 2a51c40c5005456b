package models

import (
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

type AttachmentKind string

const (
	DepositPhoto  AttachmentKind = "deposit_photo"
	DepositDoc    AttachmentKind = "deposit_doc"
	WithdrawPhoto AttachmentKind = "withdraw_photo"
	WithdrawDoc   AttachmentKind = "withdraw_doc"
)

func (k AttachmentKind) IsDeposit() bool  { return strings.HasPrefix(string(k), "deposit_") }
func (k AttachmentKind) IsWithdraw() bool { return strings.HasPrefix(string(k), "withdraw_") }
func (k AttachmentKind) IsPhoto() bool    { return strings.HasSuffix(string(k), "_photo") }

type Attachment struct {
	ID        uint           `gorm:"primaryKey"`
	TicketID  uint           `gorm:"index;not null"`
	Kind      AttachmentKind `gorm:"type:varchar(32);not null"`
	FileID    string         `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

func (Attachment) TableName() string {
	return "attachments"
}

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Message is one audit-log turn on a ticket.
type Message struct {
	ID        uint        `gorm:"primaryKey"`
	TicketID  uint        `gorm:"index;not null"`
	Sender    Sender      `gorm:"type:varchar(16);not null"`
	Text      null.String `gorm:"type:text"`
	FileID    null.String `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}

func (Message) TableName() string {
	return "messages"
}
