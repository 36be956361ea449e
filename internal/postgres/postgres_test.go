package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"circlechain-wallet-go/internal/database"
	"circlechain-wallet-go/internal/marketplace"
	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecyclingRewardArgs(t *testing.T) {
	args := rewardArgs(marketplace.RecyclingReward{
		UserId:           "consumer",
		MaterialType:     "glass",
		Quantity:         decimal.RequireFromString("2.5"),
		RecycleRequestId: 4,
		MaterialId:       9,
	})
	assert.Equal(t, "recycling_reward", args.Kind())

	raw, err := json.Marshal(args)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"consumer","material_type":"glass","quantity":"2.5","recycle_request_id":4,"material_id":9}`, string(raw))

	field, ok := reflect.TypeOf(args).FieldByName("RecycleRequestId")
	require.True(t, ok)
	assert.Equal(t, "unique", field.Tag.Get("river"), "jobs must be unique per recycle request")
	for _, name := range []string{"UserId", "MaterialType", "Quantity", "MaterialId"} {
		f, _ := reflect.TypeOf(args).FieldByName(name)
		assert.Empty(t, f.Tag.Get("river"), name)
	}
}

func TestRecyclingRewardWorker_RetryPaysOnce(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "worker.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.CreateUser(ctx, store.CreateUserParams{
		Id:           "consumer",
		Email:        "consumer@example.com",
		Name:         "Consumer",
		PasswordHash: "hash",
		Role:         models.RoleConsumer,
	})
	require.NoError(t, err)

	w := wallet.NewService(db, wallet.DefaultRatePolicy(), 0)
	worker := NewRecyclingRewardWorker(w)
	job := &river.Job[RecyclingRewardArgs]{
		JobRow: &rivertype.JobRow{ID: 42},
		Args: rewardArgs(marketplace.RecyclingReward{
			UserId:           "consumer",
			MaterialType:     "metal",
			Quantity:         decimal.NewFromInt(2),
			RecycleRequestId: 4,
			MaterialId:       9,
		}),
	}

	require.NoError(t, worker.Work(ctx, job))
	// A retry after a crash between the credit and job completion
	require.NoError(t, worker.Work(ctx, job))

	balance, err := db.GetBalance(ctx, "consumer")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(30)), "got %s", balance)

	history, err := db.GetTransactionHistory(ctx, "consumer", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, marketplace.RecyclingRewardReference(4), history[0].Reference)
}

func TestParseNumeric(t *testing.T) {
	d, err := parseNumeric("150.00000000")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "150", d.String())

	_, err = parseNumeric("NaN")
	assert.True(t, errors.Is(err, store.ErrStoreFailure))
}

func TestDecimalParam(t *testing.T) {
	assert.Nil(t, decimalParam(nil))

	d := decimal.RequireFromString("12.75")
	p := decimalParam(&d)
	require.NotNil(t, p)
	assert.Equal(t, "12.75", *p)
}

func TestNewRewardQueue_RejectsZeroWorkers(t *testing.T) {
	_, err := NewRewardQueue(nil, nil, 0)
	assert.Error(t, err)
}
