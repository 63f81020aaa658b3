package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupLedgerTest(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	return New(db, logger), mock
}

func TestLedger_Reserve_Fresh(t *testing.T) {
	ledger, mock := setupLedgerTest(t)

	mock.ExpectExec("INSERT INTO confirmations").
		WithArgs("NEUROLAB-1-abc", "12345", 500.0, "ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	fresh, err := ledger.Reserve(context.Background(), "NEUROLAB-1-abc", "12345", 500, "ada@example.com")
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if !fresh {
		t.Error("Expected a fresh reservation")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestLedger_Reserve_Duplicate(t *testing.T) {
	ledger, mock := setupLedgerTest(t)

	// ON CONFLICT DO NOTHING affects zero rows for an existing tx_ref.
	mock.ExpectExec("INSERT INTO confirmations").
		WithArgs("NEUROLAB-1-abc", "12345", 500.0, "ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	fresh, err := ledger.Reserve(context.Background(), "NEUROLAB-1-abc", "12345", 500, "ada@example.com")
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if fresh {
		t.Error("Expected duplicate reservation to report not fresh")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestLedger_Reserve_DBError(t *testing.T) {
	ledger, mock := setupLedgerTest(t)

	mock.ExpectExec("INSERT INTO confirmations").
		WillReturnError(errors.New("connection refused"))

	_, err := ledger.Reserve(context.Background(), "r", "1", 250, "a@b.c")
	if err == nil {
		t.Fatal("Expected error from database failure")
	}
}

func TestLedger_Release(t *testing.T) {
	ledger, mock := setupLedgerTest(t)

	mock.ExpectExec("DELETE FROM confirmations WHERE tx_ref = \\$1").
		WithArgs("NEUROLAB-1-abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ledger.Release(context.Background(), "NEUROLAB-1-abc"); err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestLedger_RecordAudit(t *testing.T) {
	ledger, mock := setupLedgerTest(t)

	mock.ExpectExec("INSERT INTO confirmation_audit").
		WithArgs("NEUROLAB-1-abc", "notify", "smtp down").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ledger.RecordAudit(context.Background(), "NEUROLAB-1-abc", "notify", "smtp down")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestLedger_RecordAudit_SwallowsErrors(t *testing.T) {
	ledger, mock := setupLedgerTest(t)

	mock.ExpectExec("INSERT INTO confirmation_audit").
		WillReturnError(errors.New("connection refused"))

	// Must not panic or propagate; audit is best effort.
	ledger.RecordAudit(context.Background(), "r", "record", "boom")
}
