package ledger

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormSource reads the ledger tables through GORM.
type GormSource struct {
	db *gorm.DB
}

type participantModel struct {
	ID      string  `gorm:"primaryKey;column:id"`
	EventID string  `gorm:"index;column:event_id"`
	Name    string  `gorm:"column:name"`
	Weight  float64 `gorm:"column:weight;default:1"`
}

func (participantModel) TableName() string { return "ledger_participants" }

type expenseModel struct {
	ID      string  `gorm:"primaryKey;column:id"`
	EventID string  `gorm:"index;column:event_id"`
	Title   string  `gorm:"column:title"`
	Total   float64 `gorm:"column:total"`
}

func (expenseModel) TableName() string { return "ledger_expenses" }

type paymentModel struct {
	ID            uint    `gorm:"primaryKey"`
	EventID       string  `gorm:"index;column:event_id"`
	ExpenseID     string  `gorm:"column:expense_id"`
	ParticipantID string  `gorm:"column:participant_id"`
	Amount        float64 `gorm:"column:amount"`
}

func (paymentModel) TableName() string { return "ledger_payments" }

// NewGormSource opens a pooled PostgreSQL connection. The ledger tables
// are owned and written by the main product backend; this side only
// ensures they exist so a fresh deployment starts clean.
func NewGormSource(host string, port int, user, password, dbname string) (*GormSource, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&participantModel{}, &expenseModel{}, &paymentModel{}, &planModel{}); err != nil {
		return nil, err
	}

	return &GormSource{db: db}, nil
}

// Snapshot loads all three record lists for one event. Missing records are
// not an error; an unknown event simply yields an empty snapshot.
func (s *GormSource) Snapshot(ctx context.Context, eventID string) (Snapshot, error) {
	snap := Snapshot{EventID: eventID}

	var participants []participantModel
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&participants).Error; err != nil {
		return snap, err
	}
	for _, p := range participants {
		weight := p.Weight
		if weight == 0 {
			weight = 1
		}
		snap.Participants = append(snap.Participants, Participant{ID: p.ID, Name: p.Name, Weight: weight})
	}

	var expenses []expenseModel
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&expenses).Error; err != nil {
		return snap, err
	}
	for _, e := range expenses {
		snap.Expenses = append(snap.Expenses, Expense{ID: e.ID, Title: e.Title, Total: e.Total})
	}

	var payments []paymentModel
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&payments).Error; err != nil {
		return snap, err
	}
	for _, p := range payments {
		snap.Payments = append(snap.Payments, Payment{ExpenseID: p.ExpenseID, ParticipantID: p.ParticipantID, Amount: p.Amount})
	}

	return snap, nil
}

func (s *GormSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying handle for collaborators sharing the same
// connection pool (plan source).
func (s *GormSource) DB() *gorm.DB { return s.db }

// planModel lives here because the plan table shares the ledger migration.
type planModel struct {
	EventID   string `gorm:"primaryKey;column:event_id"`
	Tier      string `gorm:"column:tier"`
	UpdatedAt time.Time
}

func (planModel) TableName() string { return "event_plans" }
