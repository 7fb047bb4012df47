package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver
	_ "github.com/lib/pq"
)

// SQLSource is the database/sql implementation of Source. Deployments that
// already hand this service a plain *sql.DB pool use it instead of the
// GORM one; both read the same tables.
type SQLSource struct {
	db *sql.DB
}

func NewSQLSource(host string, port int, user, password, dbname string) (*SQLSource, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLSource{db: db}, nil
}

func (s *SQLSource) Snapshot(ctx context.Context, eventID string) (Snapshot, error) {
	snap := Snapshot{EventID: eventID}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(NULLIF(weight, 0), 1) FROM ledger_participants WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Weight); err != nil {
			return snap, err
		}
		snap.Participants = append(snap.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	expRows, err := s.db.QueryContext(ctx,
		`SELECT id, title, total FROM ledger_expenses WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return snap, err
	}
	defer expRows.Close()
	for expRows.Next() {
		var e Expense
		if err := expRows.Scan(&e.ID, &e.Title, &e.Total); err != nil {
			return snap, err
		}
		snap.Expenses = append(snap.Expenses, e)
	}
	if err := expRows.Err(); err != nil {
		return snap, err
	}

	payRows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, participant_id, amount FROM ledger_payments WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return snap, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p Payment
		if err := payRows.Scan(&p.ExpenseID, &p.ParticipantID, &p.Amount); err != nil {
			return snap, err
		}
		snap.Payments = append(snap.Payments, p)
	}
	return snap, payRows.Err()
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

// DB exposes the pool for collaborators reading sibling tables.
func (s *SQLSource) DB() *sql.DB {
	return s.db
}
