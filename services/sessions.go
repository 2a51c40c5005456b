package services

import (
	"sync"
	"time"

	"cashback_bot/claim"
)

type dialogKind int

const (
	dialogAwaitReason dialogKind = iota + 1
	dialogAwaitMessage
)

// operatorDialog is the single pending sub-dialog of an operator.
type operatorDialog struct {
	Kind dialogKind
	Code string
}

// Sessions holds claimant drafts and operator sub-dialogs keyed by Telegram id.
// A draft is only mutated by the worker that owns its key; the map itself and
// the touch times are guarded by mu.
type Sessions struct {
	mu      sync.Mutex
	drafts  map[int64]*claim.Draft
	touched map[int64]time.Time
	dialogs map[int64]operatorDialog
	now     func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{
		drafts:  make(map[int64]*claim.Draft),
		touched: make(map[int64]time.Time),
		dialogs: make(map[int64]operatorDialog),
		now:     time.Now,
	}
}

func (s *Sessions) Draft(userID int64) (*claim.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[userID]
	return d, ok
}

// OpenDraft installs d as the claimant's draft, replacing any other.
func (s *Sessions) OpenDraft(userID int64, d *claim.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[userID] = d
	s.touched[userID] = s.now()
}

// PutDraft refreshes the idle timer of d. It reports false when d is no
// longer the stored draft, e.g. after ExpireIdle removed it.
func (s *Sessions) PutDraft(userID int64, d *claim.Draft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.drafts[userID]; !ok || cur != d {
		return false
	}
	s.touched[userID] = s.now()
	return true
}

func (s *Sessions) DropDraft(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, userID)
	delete(s.touched, userID)
}

// ExpireIdle removes drafts untouched since before and returns their owners.
func (s *Sessions) ExpireIdle(before time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []int64
	for id, at := range s.touched {
		if at.Before(before) {
			expired = append(expired, id)
			delete(s.drafts, id)
			delete(s.touched, id)
		}
	}
	return expired
}

func (s *Sessions) DraftCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// StartDialog replaces any pending sub-dialog of the operator.
func (s *Sessions) StartDialog(operatorID int64, kind dialogKind, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs[operatorID] = operatorDialog{Kind: kind, Code: code}
}

// TakeDialog returns and clears the operator's pending sub-dialog.
func (s *Sessions) TakeDialog(operatorID int64) (operatorDialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[operatorID]
	delete(s.dialogs, operatorID)
	return d, ok
}

func (s *Sessions) HasDialog(operatorID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dialogs[operatorID]
	return ok
}
