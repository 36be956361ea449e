package database

import (
	"context"
	"errors"
	"testing"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreateUser_OpeningBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "alice", "1000")

	if !user.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected balance 1000, got %s", user.Balance)
	}
	if !user.OpeningBalance.Equal(user.Balance) {
		t.Errorf("Expected opening balance to equal balance, got %s", user.OpeningBalance)
	}
	if user.Role != models.RoleConsumer {
		t.Errorf("Expected role consumer, got %s", user.Role)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "alice", "1000")

	_, err := service.CreateUser(ctx, store.CreateUserParams{
		Id:           "alice-2",
		Email:        "ALICE@example.com",
		Name:         "Alice Again",
		PasswordHash: "hash",
		Role:         models.RoleProducer,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	createTestUser(t, service, "alice", "1000")

	user, err := service.GetUserByEmail(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.Id != "alice" {
		t.Errorf("Expected alice, got %s", user.Id)
	}
}

func TestGetUserById_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetUserById(context.Background(), "nobody")
	if !store.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestGetUsers(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	createTestUser(t, service, "alice", "1000")
	createTestUser(t, service, "bob", "500")

	users, err := service.GetUsers(context.Background())
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
}
