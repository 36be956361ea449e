package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	user, err := scanUser(s.pool.QueryRow(ctx, queryInsertUser,
		params.Id, email, params.Name, params.PasswordHash, string(params.Role), params.OpeningBalance.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.Conflict(fmt.Sprintf("email %s already registered", email))
	}
	if err != nil {
		return nil, store.StoreFailure("insert user", err)
	}

	zap.L().Info("User created",
		zap.String("user_id", user.Id),
		zap.String("role", string(user.Role)),
		zap.String("opening_balance", user.OpeningBalance.String()))
	return user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, queryGetActiveUsers)
	if err != nil {
		return nil, store.StoreFailure("query users", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, store.StoreFailure("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, store.StoreFailure("iterate users", err)
	}
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) getUser(ctx context.Context, query, key string) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("user", key)
	}
	if err != nil {
		return nil, store.StoreFailure("query user", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u                models.User
		role             string
		balance, opening string
	)
	err := row.Scan(&u.Id, &u.Email, &u.Name, &u.PasswordHash, &role, &balance, &opening,
		&u.Version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if u.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	if u.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, err
	}
	return &u, nil
}
