package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

// SummaryCreditCost is the flat price of one commit summary.
const SummaryCreditCost = 1

// BillingLedger extends core.BillingLedger with account management used by the
// CLI and tests.
type BillingLedger interface {
	core.BillingLedger
	CreateUser(ctx context.Context, email string, credits int) (string, error)
	AddCredits(ctx context.Context, userID string, amount int, description string) error
	GetBalance(ctx context.Context, userID string) (int, error)
}

type billingLedger struct {
	db *sqlx.DB
}

// NewBillingLedger creates the credit ledger.
func NewBillingLedger(db *sqlx.DB) BillingLedger {
	return &billingLedger{db: db}
}

func (b *billingLedger) CreateUser(ctx context.Context, email string, credits int) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	query := b.db.Rebind(`INSERT INTO users (id, email, credits, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := b.db.ExecContext(ctx, query, id, email, credits, now, now); err != nil {
		return "", fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return id, nil
}

func (b *billingLedger) GetBalance(ctx context.Context, userID string) (int, error) {
	var credits int
	err := b.db.GetContext(ctx, &credits, b.db.Rebind(`SELECT credits FROM users WHERE id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", userID, err)
	}
	return credits, nil
}

func (b *billingLedger) HasCredits(ctx context.Context, userID string, amount int) (bool, error) {
	balance, err := b.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// DeductCredits debits amount and records a transaction. The debit is
// conditional on a sufficient balance so concurrent deductions cannot overdraw.
func (b *billingLedger) DeductCredits(ctx context.Context, userID string, amount int, description string) error {
	if amount <= 0 {
		return fmt.Errorf("deduction must be positive: %d", amount)
	}
	return b.apply(ctx, userID, -amount, description)
}

func (b *billingLedger) AddCredits(ctx context.Context, userID string, amount int, description string) error {
	if amount <= 0 {
		return fmt.Errorf("credit must be positive: %d", amount)
	}
	return b.apply(ctx, userID, amount, description)
}

func (b *billingLedger) apply(ctx context.Context, userID string, delta int, description string) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	update := tx.Rebind(`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ? AND credits + ? >= 0`)
	res, err := tx.ExecContext(ctx, update, delta, now, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to update credits of %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), userID); err != nil {
			return fmt.Errorf("failed to look up user %s: %w", userID, err)
		}
		if exists == 0 {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("user %s: %w", userID, ErrInsufficientCredits)
	}

	var balance int
	if err := tx.GetContext(ctx, &balance, tx.Rebind(`SELECT credits FROM users WHERE id = ?`), userID); err != nil {
		return fmt.Errorf("failed to read balance of %s: %w", userID, err)
	}
	insert := tx.Rebind(`INSERT INTO credit_transactions (id, user_id, amount, balance_after, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), userID, delta, balance, description, now); err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return tx.Commit()
}

// EstimateSummaryCredits prices a summary. Every diff currently costs the same.
func (b *billingLedger) EstimateSummaryCredits(string) int {
	return SummaryCreditCost
}
