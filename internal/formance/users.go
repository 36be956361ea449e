package formance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Account metadata keys for a registered user.
const (
	metaEntityType     = "entity_type"
	metaActive         = "active"
	metaName           = "name"
	metaEmail          = "email"
	metaPasswordHash   = "password_hash"
	metaRole           = "role"
	metaOpeningBalance = "opening_balance"
	metaCreatedAt      = "created_at"

	entityEndUser = "end_user"
)

// ---------- User CRUD ----------

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	// Check if a user with this email already exists -- reject to prevent duplicates.
	if existing, err := s.GetUserByEmail(ctx, email); err == nil {
		zap.L().Info("User with this email already exists in Formance",
			zap.String("existing_id", existing.Id),
			zap.String("email", email))
		return nil, store.Conflict(fmt.Sprintf("email %s already registered", email))
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	opening, err := toMinorUnits(params.OpeningBalance)
	if err != nil {
		return nil, err
	}

	addr := userAddress(params.Id)
	zap.L().Info("Creating user in Formance", zap.String("address", addr), zap.String("email", email))

	_, err = s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		RequestBody: map[string]string{
			metaEntityType:     entityEndUser,
			metaActive:         "true",
			metaName:           params.Name,
			metaEmail:          email,
			metaPasswordHash:   params.PasswordHash,
			metaRole:           string(params.Role),
			metaOpeningBalance: params.OpeningBalance.String(),
			metaCreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, store.StoreFailure("create user account", err)
	}

	if params.OpeningBalance.IsPositive() {
		if err := s.postOpeningBalance(ctx, params.Id, opening); err != nil {
			return nil, err
		}
	}

	return s.GetUserById(ctx, params.Id)
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	acct, err := s.getAccount(ctx, userId)
	if err != nil {
		return nil, err
	}
	return accountToUser(acct), nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	resp, err := s.client.Ledger.V2.ListAccounts(ctx, operations.V2ListAccountsRequest{
		Ledger:   s.ledger,
		PageSize: ptrInt64(100),
		Expand:   strPtr("volumes"),
		RequestBody: map[string]any{
			"$match": map[string]any{
				"metadata[email]": email,
			},
		},
	})
	if err != nil {
		return nil, store.StoreFailure("search user by email", err)
	}

	for i := range resp.V2AccountsCursorResponse.Cursor.Data {
		acct := &resp.V2AccountsCursorResponse.Cursor.Data[i]
		if isUserAccount(acct.Address) {
			return accountToUser(acct), nil
		}
	}
	return nil, store.NotFound("user", email)
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	var cursor *string
	for {
		resp, err := s.client.Ledger.V2.ListAccounts(ctx, operations.V2ListAccountsRequest{
			Ledger:   s.ledger,
			PageSize: ptrInt64(100),
			Cursor:   cursor,
			Expand:   strPtr("volumes"),
			RequestBody: map[string]any{
				"$match": map[string]any{
					"metadata[entity_type]": entityEndUser,
				},
			},
		})
		if err != nil {
			return nil, store.StoreFailure("list users", err)
		}

		page := resp.V2AccountsCursorResponse.Cursor
		for i := range page.Data {
			if isUserAccount(page.Data[i].Address) {
				users = append(users, *accountToUser(&page.Data[i]))
			}
		}
		if !page.HasMore || page.Next == nil {
			return users, nil
		}
		cursor = page.Next
	}
}

// ---------- helpers ----------

// isUserAccount matches users:{id} but not sub-accounts such as users:{id}:{x}.
func isUserAccount(address string) bool {
	return strings.HasPrefix(address, userPrefix) && !strings.Contains(address[len(userPrefix):], ":")
}

func accountToUser(acct *shared.V2Account) *models.User {
	meta := acct.Metadata

	created := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		created = t
	} else if acct.FirstUsage != nil {
		created = *acct.FirstUsage
	}
	updated := created
	if acct.UpdatedAt != nil {
		updated = *acct.UpdatedAt
	}

	opening, err := decimal.NewFromString(meta[metaOpeningBalance])
	if err != nil {
		opening = decimal.Zero
	}

	return &models.User{
		Id:             strings.TrimPrefix(acct.Address, userPrefix),
		Email:          meta[metaEmail],
		Name:           meta[metaName],
		PasswordHash:   meta[metaPasswordHash],
		Role:           models.Role(meta[metaRole]),
		Balance:        fromMinorUnits(volumeBalance(acct.Volumes, tokenAsset)),
		OpeningBalance: opening,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
}
