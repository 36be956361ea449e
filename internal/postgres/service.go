package postgres

import (
	"context"
	"fmt"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
)

// Compile-time checks: *Service must satisfy both store contracts.
var (
	_ store.WalletStore = (*Service)(nil)
	_ store.MarketStore = (*Service)(nil)
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(ctx context.Context, cfg models.PostgresConfig) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url cannot be empty")
	}
	if cfg.MaxConns <= 0 {
		return nil, fmt.Errorf("max connections must be positive, got %d", cfg.MaxConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	zap.L().Info("Connecting to PostgreSQL", zap.String("host", poolCfg.ConnConfig.Host))
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	zap.L().Info("PostgreSQL service initialized successfully")
	return &Service{pool: pool}, nil
}

// Pool exposes the connection pool for the job queue.
func (s *Service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return store.StoreFailure("ping database", err)
	}
	return nil
}

// InitSchema creates the wallet and marketplace tables and applies the job queue migrations.
func (s *Service) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(s.pool), nil)
	if err != nil {
		return fmt.Errorf("unable to create job queue migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("unable to migrate job queue: %w", err)
	}
	for _, v := range res.Versions {
		zap.L().Info("Applied job queue migration", zap.Int("version", v.Version))
	}

	zap.L().Info("PostgreSQL schema ready")
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('producer', 'consumer', 'recycler', 'admin')),
	balance NUMERIC(38, 8) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	opening_balance NUMERIC(38, 8) NOT NULL DEFAULT 0,
	version BIGINT NOT NULL DEFAULT 1,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	reference TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL REFERENCES users(id),
	kind TEXT NOT NULL,
	related_id BIGINT,
	amount NUMERIC(38, 8),
	delta NUMERIC(38, 8) NOT NULL DEFAULT 0,
	balance_after NUMERIC(38, 8) NOT NULL,
	details TEXT,
	status TEXT NOT NULL DEFAULT 'confirmed',
	created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC, id DESC);

CREATE OR REPLACE FUNCTION transactions_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'transactions are append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_transactions_append_only ON transactions;
CREATE TRIGGER trg_transactions_append_only
	BEFORE UPDATE OR DELETE ON transactions
	FOR EACH ROW EXECUTE FUNCTION transactions_append_only();

CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	price NUMERIC(38, 8) NOT NULL,
	weight NUMERIC(38, 8) NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'available',
	impact_score NUMERIC(38, 8) NOT NULL DEFAULT 0,
	producer_id TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	quantity INTEGER NOT NULL,
	total_price NUMERIC(38, 8) NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	consumer_id TEXT NOT NULL REFERENCES users(id),
	product_id BIGINT NOT NULL REFERENCES products(id),
	payment_reference TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recycle_requests (
	id BIGSERIAL PRIMARY KEY,
	item_description TEXT NOT NULL,
	weight NUMERIC(38, 8) NOT NULL DEFAULT 0,
	category TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'submitted',
	consumer_id TEXT NOT NULL REFERENCES users(id),
	recycler_id TEXT REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS raw_materials (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	material_type TEXT NOT NULL,
	quantity NUMERIC(38, 8) NOT NULL CHECK (quantity >= 0),
	price_per_kg NUMERIC(38, 8) NOT NULL,
	status TEXT NOT NULL DEFAULT 'available',
	recycler_id TEXT NOT NULL REFERENCES users(id),
	recycle_request_id BIGINT REFERENCES recycle_requests(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS material_purchases (
	id BIGSERIAL PRIMARY KEY,
	quantity NUMERIC(38, 8) NOT NULL,
	total_price NUMERIC(38, 8) NOT NULL,
	producer_id TEXT NOT NULL REFERENCES users(id),
	material_id BIGINT NOT NULL REFERENCES raw_materials(id),
	payment_reference TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
