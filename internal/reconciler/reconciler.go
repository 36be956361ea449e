package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"go.uber.org/zap"
)

const defaultConcurrency = 4

// Config contains configuration for Reconciler
type Config struct {
	Store       store.WalletStore
	Interval    time.Duration
	Concurrency int
}

// Report summarizes one pass over every user
type Report struct {
	StartedAt  time.Time
	Duration   time.Duration
	Checked    int
	Mismatches []models.Reconciliation
	Failures   map[string]error
}

// Balanced reports whether the pass found no mismatch and no failure
func (r *Report) Balanced() bool {
	return len(r.Mismatches) == 0 && len(r.Failures) == 0
}

// Reconciler periodically compares every stored balance with its ledger
type Reconciler struct {
	store       store.WalletStore
	interval    time.Duration
	concurrency int

	mutex      sync.RWMutex
	lastReport *Report

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// New creates a reconciler; Start launches its loop
func New(cfg Config) (*Reconciler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("reconciler requires a store")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Reconciler{
		store:       cfg.Store,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}, nil
}

// Start runs one pass immediately and then one per interval until Stop or ctx is done
func (r *Reconciler) Start(ctx context.Context) {
	zap.L().Info("Starting balance reconciler", zap.Duration("interval", r.interval))
	go r.pollLoop(ctx)
}

// Stop gracefully stops the reconciler
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		zap.L().Info("Stopping balance reconciler")
		close(r.stopChan)
		<-r.doneChan
		zap.L().Info("Balance reconciler stopped")
	})
}

// LastReport returns the most recent completed pass, or nil
func (r *Reconciler) LastReport() *Report {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.lastReport
}

func (r *Reconciler) pollLoop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			r.runAndLog(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) runAndLog(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		zap.L().Error("Reconciliation pass failed", zap.Error(err))
	}
}

// RunOnce reconciles every user once and stores the report
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC(), Failures: make(map[string]error)}

	users, err := r.store.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, r.concurrency)
	)
	for _, user := range users {
		wg.Add(1)
		sem <- struct{}{}

		go func(userId string) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := r.store.ReconcileBalance(ctx, userId)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if err != nil {
				report.Failures[userId] = err
				zap.L().Error("Failed to reconcile user balance",
					zap.String("user_id", userId),
					zap.Error(err))
				return
			}
			if !rec.Balanced() {
				report.Mismatches = append(report.Mismatches, *rec)
				zap.L().Error("Balance mismatch detected",
					zap.String("user_id", userId),
					zap.String("stored_balance", rec.StoredBalance.String()),
					zap.String("computed_balance", rec.ComputedBalance.String()),
					zap.String("opening_balance", rec.OpeningBalance.String()),
					zap.Int64("entry_count", rec.EntryCount))
			}
		}(user.Id)
	}
	wg.Wait()

	report.Duration = time.Since(report.StartedAt)

	r.mutex.Lock()
	r.lastReport = report
	r.mutex.Unlock()

	if report.Balanced() {
		zap.L().Info("Reconciliation pass completed",
			zap.Int("users_checked", report.Checked),
			zap.Duration("duration", report.Duration))
	} else {
		zap.L().Warn("Reconciliation pass completed with problems",
			zap.Int("users_checked", report.Checked),
			zap.Int("mismatches", len(report.Mismatches)),
			zap.Int("failures", len(report.Failures)),
			zap.Duration("duration", report.Duration))
	}
	return report, nil
}
