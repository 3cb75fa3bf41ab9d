package utils

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE clients").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE clients SET plan = 'pro'")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPoolConfig_Resolved(t *testing.T) {
	got := PoolConfig{}.resolved()
	if got.MaxOpenConns != DefaultMaxOpenConns || got.MaxIdleConns != DefaultMaxOpenConns/2 ||
		got.ConnMaxLifetime != DefaultConnMaxLifetime || got.PingTimeout != DefaultPingTimeout {
		t.Fatalf("unexpected defaults %+v", got)
	}

	got = PoolConfig{MaxOpenConns: 4, MaxIdleConns: 9, ConnMaxLifetime: time.Minute}.resolved()
	if got.MaxOpenConns != 4 || got.MaxIdleConns != 4 || got.ConnMaxLifetime != time.Minute {
		t.Fatalf("expected idle clamped to open, got %+v", got)
	}
}

func TestOpenPostgres_AppliesPool(t *testing.T) {
	const dsn = "pool-sizing"
	mockDB, _, err := sqlmock.NewWithDSN(dsn)
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	db, err := OpenPostgres(context.Background(), "sqlmock", dsn, PoolConfig{MaxOpenConns: 6})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if n := db.Stats().MaxOpenConnections; n != 6 {
		t.Fatalf("expected 6 open connections, got %d", n)
	}
}
