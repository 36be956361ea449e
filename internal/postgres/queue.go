package postgres

import (
	"context"
	"errors"
	"fmt"

	"circlechain-wallet-go/internal/marketplace"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ marketplace.RewardDispatcher = (*RewardQueue)(nil)

// RecyclingRewardArgs is the persisted job payload for a recycling reward.
// Jobs are unique per recycle request.
type RecyclingRewardArgs struct {
	UserId           string          `json:"user_id"`
	MaterialType     string          `json:"material_type"`
	Quantity         decimal.Decimal `json:"quantity"`
	RecycleRequestId int64           `json:"recycle_request_id" river:"unique"`
	MaterialId       int64           `json:"material_id"`
}

func (RecyclingRewardArgs) Kind() string { return "recycling_reward" }

func rewardArgs(r marketplace.RecyclingReward) RecyclingRewardArgs {
	return RecyclingRewardArgs{
		UserId:           r.UserId,
		MaterialType:     r.MaterialType,
		Quantity:         r.Quantity,
		RecycleRequestId: r.RecycleRequestId,
		MaterialId:       r.MaterialId,
	}
}

// RecyclingRewardWorker credits the consumer once the job is picked up
type RecyclingRewardWorker struct {
	river.WorkerDefaults[RecyclingRewardArgs]
	wallet wallet.Service
}

func NewRecyclingRewardWorker(w wallet.Service) *RecyclingRewardWorker {
	return &RecyclingRewardWorker{wallet: w}
}

func (w *RecyclingRewardWorker) Work(ctx context.Context, job *river.Job[RecyclingRewardArgs]) error {
	args := job.Args
	receipt, err := w.wallet.ProcessRecyclingReward(ctx, marketplace.RecyclingReward{
		UserId:           args.UserId,
		MaterialType:     args.MaterialType,
		Quantity:         args.Quantity,
		RecycleRequestId: args.RecycleRequestId,
		MaterialId:       args.MaterialId,
	}.WalletRequest())
	if errors.Is(err, store.ErrConflict) {
		// an earlier attempt committed the credit before the job was completed
		zap.L().Info("Recycling reward already paid",
			zap.Int64("job_id", job.ID),
			zap.String("user_id", args.UserId),
			zap.Int64("recycle_request_id", args.RecycleRequestId))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to credit recycling reward for user %s: %w", args.UserId, err)
	}

	zap.L().Info("Recycling reward paid",
		zap.Int64("job_id", job.ID),
		zap.String("user_id", args.UserId),
		zap.Int64("recycle_request_id", args.RecycleRequestId),
		zap.Int64("material_id", args.MaterialId),
		zap.String("reference", receipt.TransactionId))
	return nil
}

// RewardQueue hands recycling rewards to River so they survive restarts and are retried
type RewardQueue struct {
	client *river.Client[pgx.Tx]
}

func NewRewardQueue(pool *pgxpool.Pool, w wallet.Service, maxWorkers int) (*RewardQueue, error) {
	if maxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be positive, got %d", maxWorkers)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewRecyclingRewardWorker(w))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create job queue client: %w", err)
	}
	return &RewardQueue{client: client}, nil
}

func (q *RewardQueue) Start(ctx context.Context) error {
	zap.L().Info("Starting recycling reward queue")
	return q.client.Start(ctx)
}

func (q *RewardQueue) Stop(ctx context.Context) error {
	zap.L().Info("Stopping recycling reward queue")
	return q.client.Stop(ctx)
}

// DispatchRecyclingReward enqueues the reward; one job per recycle request
func (q *RewardQueue) DispatchRecyclingReward(ctx context.Context, reward marketplace.RecyclingReward) error {
	res, err := q.client.Insert(ctx, rewardArgs(reward), &river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByArgs: true},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue recycling reward: %w", err)
	}

	zap.L().Info("Recycling reward enqueued",
		zap.Int64("job_id", res.Job.ID),
		zap.String("user_id", reward.UserId),
		zap.Bool("duplicate", res.UniqueSkippedAsDuplicate))
	return nil
}
