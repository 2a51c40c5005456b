package services

import (
	"context"

	"cashback_bot/db"
	"cashback_bot/models"
)

// Admission limits how many active tickets one claimant may hold.
type Admission struct {
	store TicketStore
	quota db.Quota
}

func NewAdmission(store TicketStore, statuses []models.TicketStatus, max int) *Admission {
	return &Admission{
		store: store,
		quota: db.Quota{Statuses: append([]models.TicketStatus(nil), statuses...), Max: max},
	}
}

func (a *Admission) Max() int {
	return a.quota.Max
}

// Quota is handed to TicketStore.CreateTicket so the final check runs in
// the same transaction as the insert.
func (a *Admission) Quota() *db.Quota {
	q := a.quota
	return &q
}

func (a *Admission) ActiveCount(ctx context.Context, tgID int64) (int64, error) {
	return a.store.CountActive(ctx, tgID, a.quota.Statuses)
}

func (a *Admission) CanOpenNew(ctx context.Context, tgID int64) (bool, error) {
	n, err := a.ActiveCount(ctx, tgID)
	if err != nil {
		return false, err
	}
	return n < int64(a.quota.Max), nil
}

// ListActive returns the claimant's active tickets, newest first.
func (a *Admission) ListActive(ctx context.Context, tgID int64) ([]db.ActiveTicket, error) {
	return a.store.ListActive(ctx, tgID, a.quota.Statuses)
}
