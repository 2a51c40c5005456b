package models

import (
	"time"

	"github.com/guregu/null/v5"
)

type TicketStatus string

const (
	StatusNew       TicketStatus = "new"
	StatusNeedsInfo TicketStatus = "needs_info"
	StatusApproved  TicketStatus = "approved"
	StatusRejected  TicketStatus = "rejected"
	StatusPaid      TicketStatus = "paid"
)

var AllStatuses = []TicketStatus{StatusNew, StatusNeedsInfo, StatusApproved, StatusRejected, StatusPaid}

func (s TicketStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanTransition is the lifecycle table. Repeated needs_info requests are
// allowed; paid is reachable only from approved.
func CanTransition(from, to TicketStatus) bool {
	switch from {
	case StatusNew:
		return to == StatusNeedsInfo || to == StatusApproved || to == StatusRejected
	case StatusNeedsInfo:
		return to == StatusNeedsInfo || to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusPaid
	}
	return false
}

type IdentifierKind string

const (
	IdentifierNickname IdentifierKind = "nickname"
	IdentifierEmail    IdentifierKind = "email"
)

type Ticket struct {
	ID             uint           `gorm:"primaryKey"`
	Code           string         `gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID         uint           `gorm:"index;not null"`
	ReferrerID     *uint          `gorm:"index"`
	CasinoCode     string         `gorm:"type:varchar(64);not null"`
	IdentifierKind IdentifierKind `gorm:"type:varchar(16);not null"`
	Nickname       null.String    `gorm:"type:varchar(255)"`
	Email          null.String    `gorm:"type:varchar(255)"`
	Status         TicketStatus   `gorm:"type:varchar(32);index;not null;default:new"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	User        User         `gorm:"foreignKey:UserID"`
	Attachments []Attachment `gorm:"foreignKey:TicketID"`
}

// Identifier returns whichever of nickname/email the ticket was created with.
func (t *Ticket) Identifier() string {
	if t.IdentifierKind == IdentifierEmail {
		return t.Email.String
	}
	return t.Nickname.String
}

func (Ticket) TableName() string {
	return "tickets"
}
