// Package ledger reads the expense ledger owned by the main product
// backend. This server only needs list-of-records access per event.
package ledger

import "context"

// Participant is a guest taking part in the expense split. Weight defaults
// to 1; the backing store does not enforce weight bounds.
type Participant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Expense is one shared cost with a total amount.
type Expense struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Total float64 `json:"total"`
}

// Payment attributes an amount to one (expense, participant) pair.
type Payment struct {
	ExpenseID     string  `json:"expenseId"`
	ParticipantID string  `json:"participantId"`
	Amount        float64 `json:"amount"`
}

// Snapshot is a point-in-time read of one event's ledger.
type Snapshot struct {
	EventID      string        `json:"eventId"`
	Participants []Participant `json:"participants"`
	Expenses     []Expense     `json:"expenses"`
	Payments     []Payment     `json:"payments"`
}

// Source loads ledger snapshots. Two implementations exist, one on GORM
// and one on database/sql, mirroring how the rest of the product talks to
// the relational store.
type Source interface {
	Snapshot(ctx context.Context, eventID string) (Snapshot, error)
	Close() error
}
