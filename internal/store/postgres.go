// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loan-manager/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresStore backs the store with the loan_applications and
// active_processes tables (see database.Schema). TryLock relies on the
// primary key of active_processes: only one insert per customer succeeds.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	return &PostgresStore{db: db, now: o.now}
}

const (
	selectApplicationQuery = `
		SELECT id, customer_number, status, requested_amount, scoring_token, score,
		       limit_amount, exclusion_reason, failure_message, retry_count, created_at, updated_at
		FROM loan_applications
		WHERE customer_number = $1`

	upsertApplicationQuery = `
		INSERT INTO loan_applications (
			customer_number, id, status, requested_amount, scoring_token, score,
			limit_amount, exclusion_reason, failure_message, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (customer_number) DO UPDATE SET
			id = EXCLUDED.id,
			status = EXCLUDED.status,
			requested_amount = EXCLUDED.requested_amount,
			scoring_token = EXCLUDED.scoring_token,
			score = EXCLUDED.score,
			limit_amount = EXCLUDED.limit_amount,
			exclusion_reason = EXCLUDED.exclusion_reason,
			failure_message = EXCLUDED.failure_message,
			retry_count = EXCLUDED.retry_count,
			updated_at = EXCLUDED.updated_at`

	insertMarkerQuery = `
		INSERT INTO active_processes (customer_number) VALUES ($1)
		ON CONFLICT (customer_number) DO NOTHING`

	deleteMarkerQuery = `DELETE FROM active_processes WHERE customer_number = $1`

	activeProcessQuery = `
		SELECT EXISTS (SELECT 1 FROM active_processes WHERE customer_number = $1)
		    OR EXISTS (SELECT 1 FROM loan_applications WHERE customer_number = $1 AND status = ANY($2))`
)

var blockingStatuses = []string{
	string(models.StatusPendingScore),
	string(models.StatusScoringInProgress),
	string(models.StatusActive),
}

func (s *PostgresStore) Find(ctx context.Context, customerNumber string) (*models.LoanApplication, error) {
	var (
		app             models.LoanApplication
		status          string
		requestedAmount decimal.NullDecimal
		scoringToken    sql.NullString
		score           sql.NullInt64
		exclusionReason sql.NullString
		failureMessage  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, selectApplicationQuery, customerNumber).Scan(
		&app.ID, &app.CustomerNumber, &status, &requestedAmount, &scoringToken, &score,
		&app.LimitAmount, &exclusionReason, &failureMessage, &app.RetryCount, &app.CreatedAt, &app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select application: %w", err)
	}

	app.Status = models.LoanStatus(status)
	if requestedAmount.Valid {
		app.RequestedAmount = requestedAmount.Decimal
	}
	app.ScoringToken = scoringToken.String
	if score.Valid {
		v := int(score.Int64)
		app.Score = &v
	}
	app.ExclusionReason = exclusionReason.String
	app.FailureMessage = failureMessage.String
	return &app, nil
}

func (s *PostgresStore) Save(ctx context.Context, app *models.LoanApplication) error {
	if app == nil || app.CustomerNumber == "" {
		return ErrInvalidApplication
	}
	app.UpdatedAt = s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var score sql.NullInt64
	if app.Score != nil {
		score = sql.NullInt64{Int64: int64(*app.Score), Valid: true}
	}

	_, err = tx.ExecContext(ctx, upsertApplicationQuery,
		app.CustomerNumber,
		app.ID,
		string(app.Status),
		app.RequestedAmount,
		nullString(app.ScoringToken),
		score,
		app.LimitAmount,
		nullString(app.ExclusionReason),
		nullString(app.FailureMessage),
		app.RetryCount,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert application: %w", err)
	}

	markerQuery := deleteMarkerQuery
	if app.Status.IsBlocking() {
		markerQuery = insertMarkerQuery
	}
	if _, err := tx.ExecContext(ctx, markerQuery, app.CustomerNumber); err != nil {
		return fmt.Errorf("update active marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit application: %w", err)
	}
	return nil
}

func (s *PostgresStore) TryLock(ctx context.Context, customerNumber string) (bool, error) {
	res, err := s.db.ExecContext(ctx, insertMarkerQuery, customerNumber)
	if err != nil {
		return false, fmt.Errorf("insert active marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert active marker: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) Unlock(ctx context.Context, customerNumber string) error {
	if _, err := s.db.ExecContext(ctx, deleteMarkerQuery, customerNumber); err != nil {
		return fmt.Errorf("delete active marker: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasActiveProcess(ctx context.Context, customerNumber string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, activeProcessQuery, customerNumber, pq.Array(blockingStatuses)).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("query active process: %w", err)
	}
	return active, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
