package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"circlechain-wallet-go/internal/auth"
	"circlechain-wallet-go/internal/config"
	"circlechain-wallet-go/internal/database"
	"circlechain-wallet-go/internal/formance"
	"circlechain-wallet-go/internal/idempotency"
	"circlechain-wallet-go/internal/marketplace"
	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/postgres"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Stores holds the ledger and marketplace persistence for the selected backend.
type Stores struct {
	Ledger store.WalletStore
	Market store.MarketStore
	// Postgres is set when LEDGER_BACKEND=postgres; the job queue shares its pool.
	Postgres *postgres.Service

	closers []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type Services struct {
	*Stores
	Wallet      wallet.Service
	Marketplace *marketplace.Service
	Auth        auth.Service
	Rewards     *postgres.RewardQueue
	Idempotency idempotency.Store
}

func InitializeLogger() (*zap.Logger, func()) {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeStores opens the persistence for cfg.Backend. Formance keeps the
// ledger; marketplace rows then live in SQLite.
func InitializeStores(ctx context.Context, cfg *models.Config) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := postgres.NewService(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, pg.Close)
		if err := pg.InitSchema(ctx); err != nil {
			stores.Close()
			return nil, err
		}
		stores.Ledger, stores.Market, stores.Postgres = pg, pg, pg

	case config.BackendFormance:
		db, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, db.Close)

		ledger, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.closers = append(stores.closers, ledger.Close)
		stores.Ledger, stores.Market = ledger, db

	default:
		db, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, db.Close)
		stores.Ledger, stores.Market = db, db
	}

	zap.L().Info("Ledger backend ready", zap.String("backend", cfg.Backend))
	return stores, nil
}

// InitializeServices builds the full service graph used by the HTTP server.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	stores, err := InitializeStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rates, err := LoadRatePolicy(cfg.Wallet.RatesFile)
	if err != nil {
		stores.Close()
		return nil, err
	}
	w := wallet.NewService(stores.Ledger, rates, cfg.Wallet.HistoryLimit)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		zap.L().Warn("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}
	authSvc, err := auth.NewService(stores.Ledger, secret, cfg.Auth.TokenTTL, cfg.Wallet.StartingBalance)
	if err != nil {
		stores.Close()
		return nil, err
	}

	svcs := &Services{Stores: stores, Wallet: w, Auth: authSvc}

	var dispatcher marketplace.RewardDispatcher
	if stores.Postgres != nil {
		queue, err := postgres.NewRewardQueue(stores.Postgres.Pool(), w, cfg.Postgres.RiverWorkers)
		if err != nil {
			stores.Close()
			return nil, err
		}
		svcs.Rewards = queue
		dispatcher = queue
	}
	svcs.Marketplace = marketplace.NewService(stores.Market, w, dispatcher)

	if cfg.Redis.URL != "" {
		redisStore, err := idempotency.NewRedisStoreFromURL(ctx, cfg.Redis.URL, cfg.Redis.IdempotencyTTL)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.closers = append(stores.closers, func() {
			if err := redisStore.Close(); err != nil {
				zap.L().Warn("Failed to close redis client", zap.Error(err))
			}
		})
		svcs.Idempotency = redisStore
		zap.L().Info("Using redis idempotency store")
	} else {
		svcs.Idempotency = idempotency.NewMemoryStore(cfg.Redis.IdempotencyTTL)
	}

	return svcs, nil
}

// DemoUser is a seeded account.
type DemoUser struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
}

// DemoUsers has one account per role.
var DemoUsers = []DemoUser{
	{Email: "producer@circlechain.dev", Name: "Demo Producer", Password: "producer123", Role: models.RoleProducer},
	{Email: "consumer@circlechain.dev", Name: "Demo Consumer", Password: "consumer123", Role: models.RoleConsumer},
	{Email: "recycler@circlechain.dev", Name: "Demo Recycler", Password: "recycler123", Role: models.RoleRecycler},
	{Email: "admin@circlechain.dev", Name: "Demo Admin", Password: "admin12345", Role: models.RoleAdmin},
}

// SeedDemoUsers signs up the demo accounts, skipping any that already exist.
func SeedDemoUsers(ctx context.Context, authSvc auth.Service) (int, error) {
	created := 0
	for _, u := range DemoUsers {
		_, err := authSvc.Signup(ctx, auth.SignupRequest{
			Email:    u.Email,
			Password: u.Password,
			Name:     u.Name,
			Role:     u.Role,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				zap.L().Info("Demo user already exists", zap.String("email", u.Email))
				continue
			}
			return created, fmt.Errorf("failed to seed %s: %w", u.Email, err)
		}
		created++
	}
	return created, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
