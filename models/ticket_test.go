package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		want     bool
	}{
		{StatusNew, StatusNeedsInfo, true},
		{StatusNew, StatusApproved, true},
		{StatusNew, StatusRejected, true},
		{StatusNew, StatusPaid, false},
		{StatusNeedsInfo, StatusNeedsInfo, true},
		{StatusNeedsInfo, StatusApproved, true},
		{StatusNeedsInfo, StatusRejected, true},
		{StatusApproved, StatusPaid, true},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusApproved, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusNeedsInfo, false},
		{StatusPaid, StatusApproved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAttachmentKind(t *testing.T) {
	if !DepositDoc.IsDeposit() || DepositDoc.IsPhoto() {
		t.Error("deposit_doc misclassified")
	}
	if !WithdrawPhoto.IsWithdraw() || !WithdrawPhoto.IsPhoto() {
		t.Error("withdraw_photo misclassified")
	}
}

func TestTicketIdentifier(t *testing.T) {
	var tk Ticket
	tk.IdentifierKind = IdentifierEmail
	tk.Email.SetValid("a@b.com")
	if tk.Identifier() != "a@b.com" {
		t.Errorf("Identifier() = %q", tk.Identifier())
	}
}
