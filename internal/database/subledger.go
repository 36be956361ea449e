package database

import (
	"context"
	"database/sql"
)

// SubledgerService owns the wallet ledger: user balances and the
// append-only transactions table.
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

func (s *SubledgerService) InitSchema(ctx context.Context) error {
	schema := `
	-- Transactions Table (Audit Trail, never updated or deleted)
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL,
		related_id INTEGER,
		amount TEXT,
		delta TEXT NOT NULL DEFAULT '0',
		balance_after TEXT NOT NULL,
		details TEXT,
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_kind ON transactions(kind);

	CREATE TRIGGER IF NOT EXISTS trg_transactions_no_update
	BEFORE UPDATE ON transactions
	BEGIN
		SELECT RAISE(ABORT, 'transactions are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_transactions_no_delete
	BEFORE DELETE ON transactions
	BEGIN
		SELECT RAISE(ABORT, 'transactions are append-only');
	END;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
