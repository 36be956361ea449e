package reconciler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore answers only the calls the reconciler makes.
type fakeStore struct {
	store.WalletStore
	users    []models.User
	recs     map[string]models.Reconciliation
	failures map[string]error
	passes   atomic.Int32
}

func (f *fakeStore) GetUsers(context.Context) ([]models.User, error) {
	f.passes.Add(1)
	return f.users, nil
}

func (f *fakeStore) ReconcileBalance(_ context.Context, userId string) (*models.Reconciliation, error) {
	if err := f.failures[userId]; err != nil {
		return nil, err
	}
	rec := f.recs[userId]
	return &rec, nil
}

func balanced(userId string, amount int64) models.Reconciliation {
	d := decimal.NewFromInt(amount)
	return models.Reconciliation{UserId: userId, StoredBalance: d, OpeningBalance: d, ComputedBalance: d}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{Interval: time.Minute})
	assert.Error(t, err)

	_, err = New(Config{Store: &fakeStore{}})
	assert.Error(t, err)
}

func TestRunOnce_Balanced(t *testing.T) {
	fs := &fakeStore{
		users: []models.User{{Id: "a"}, {Id: "b"}},
		recs:  map[string]models.Reconciliation{"a": balanced("a", 10), "b": balanced("b", 20)},
	}
	r, err := New(Config{Store: fs, Interval: time.Minute})
	require.NoError(t, err)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Balanced())
	assert.Equal(t, 2, report.Checked)
	assert.Same(t, report, r.LastReport())
}

func TestRunOnce_ReportsMismatchAndFailure(t *testing.T) {
	tampered := balanced("b", 20)
	tampered.StoredBalance = decimal.NewFromInt(5000)

	fs := &fakeStore{
		users:    []models.User{{Id: "a"}, {Id: "b"}, {Id: "c"}},
		recs:     map[string]models.Reconciliation{"a": balanced("a", 10), "b": tampered},
		failures: map[string]error{"c": errors.New("ledger offline")},
	}
	r, err := New(Config{Store: fs, Interval: time.Minute, Concurrency: 1})
	require.NoError(t, err)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "b", report.Mismatches[0].UserId)
	assert.Contains(t, report.Failures, "c")
}

func TestStartStop(t *testing.T) {
	fs := &fakeStore{users: []models.User{{Id: "a"}}, recs: map[string]models.Reconciliation{"a": balanced("a", 1)}}
	r, err := New(Config{Store: fs, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	r.Start(context.Background())
	assert.Eventually(t, func() bool { return fs.passes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()

	after := fs.passes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, fs.passes.Load(), "no passes after Stop")
}
