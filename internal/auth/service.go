package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = fmt.Errorf("%w: incorrect email or password", store.ErrUnauthorized)

var validate = validator.New()

// SignupRequest is the payload of a new account.
type SignupRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Name     string      `json:"name" validate:"required,max=100"`
	Role     models.Role `json:"role" validate:"required,oneof=producer consumer recycler admin"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*models.User, error)
	Login(ctx context.Context, req LoginRequest) (*Token, error)
	ValidateToken(token string) (string, models.Role, error)
	CurrentUser(ctx context.Context, userId string) (*models.User, error)
}

type service struct {
	users           store.WalletStore
	secret          []byte
	ttl             time.Duration
	startingBalance decimal.Decimal
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

// NewService signs tokens with secret; new accounts open with startingBalance.
func NewService(users store.WalletStore, secret string, ttl time.Duration, startingBalance decimal.Decimal) (Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &service{
		users:           users,
		secret:          []byte(secret),
		ttl:             ttl,
		startingBalance: startingBalance,
	}, nil
}

func (s *service) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := Validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, store.CreateUserParams{
		Id:             uuid.New().String(),
		Email:          req.Email,
		Name:           req.Name,
		PasswordHash:   string(hash),
		Role:           req.Role,
		OpeningBalance: s.startingBalance,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User signed up",
		zap.String("user_id", user.Id),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))
	return user, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Token, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		zap.L().Info("Login rejected", zap.String("user_id", user.Id))
		return nil, ErrInvalidCredentials
	}

	signed, err := s.issueToken(user.Id, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "bearer"}, nil
}

func (s *service) issueToken(userId string, role models.Role) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(token string) (string, models.Role, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", store.ErrUnauthorized, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return "", "", fmt.Errorf("%w: invalid token", store.ErrUnauthorized)
	}
	return c.Subject, c.Role, nil
}

func (s *service) CurrentUser(ctx context.Context, userId string) (*models.User, error) {
	return s.users.GetUserById(ctx, userId)
}

// Validate runs struct validation and folds the failures into one
// ErrInvalidAmount-wrapped message.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", store.ErrInvalidAmount, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must have minimum length %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", store.ErrInvalidAmount, strings.Join(msgs, "; "))
}
