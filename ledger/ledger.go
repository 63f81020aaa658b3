package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"preorder-svc/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Ledger is the durable idempotency and audit store for confirmations. The
// primary key on tx_ref is what guarantees at most one order record per
// verified transaction, regardless of how many webhook deliveries or client
// polls race each other.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

func InitDB(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	createTableQuery := `
	CREATE TABLE IF NOT EXISTS confirmations (
		tx_ref VARCHAR(255) PRIMARY KEY,
		provider_id VARCHAR(255),
		amount DECIMAL(10, 2) NOT NULL,
		customer_email VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS confirmation_audit (
		id SERIAL PRIMARY KEY,
		tx_ref VARCHAR(255) NOT NULL,
		step VARCHAR(50) NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

// Reserve claims the transaction reference for this confirmation run. It
// returns true when the claim is new; false means the reference was already
// confirmed and the caller must not write a second order record.
func (l *Ledger) Reserve(ctx context.Context, txRef, providerID string, amount float64, customerEmail string) (bool, error) {
	result, err := l.db.ExecContext(
		ctx,
		"INSERT INTO confirmations (tx_ref, provider_id, amount, customer_email) VALUES ($1, $2, $3, $4) ON CONFLICT (tx_ref) DO NOTHING",
		txRef,
		providerID,
		amount,
		customerEmail,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reserve confirmation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reservation result: %w", err)
	}
	return rows == 1, nil
}

// Release removes a reservation after a downstream persistence failure so a
// later retry of the same reference can run the workflow again.
func (l *Ledger) Release(ctx context.Context, txRef string) error {
	_, err := l.db.ExecContext(ctx, "DELETE FROM confirmations WHERE tx_ref = $1", txRef)
	if err != nil {
		return fmt.Errorf("failed to release confirmation: %w", err)
	}
	return nil
}

// RecordAudit writes a queryable audit entry for a step failure, so
// operators can find verified-but-unrecorded or recorded-but-unnotified
// orders without grepping logs.
func (l *Ledger) RecordAudit(ctx context.Context, txRef, step, detail string) {
	_, err := l.db.ExecContext(
		ctx,
		"INSERT INTO confirmation_audit (tx_ref, step, detail) VALUES ($1, $2, $3)",
		txRef,
		step,
		detail,
	)
	if err != nil {
		// Audit is best effort; the structured log line still carries
		// the reference and step.
		l.logger.Error("Failed to record audit entry",
			zap.String("tx_ref", txRef),
			zap.String("step", step),
			zap.Error(err),
		)
	}
}
