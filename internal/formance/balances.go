package formance

import (
	"context"
	"fmt"
	"math/big"

	"circlechain-wallet-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the TOKEN balance of users:{userId}.
func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	zap.L().Debug("Getting user balance from Formance", zap.String("user_id", userId))

	acct, err := s.getAccount(ctx, userId)
	if err != nil {
		return decimal.Zero, err
	}
	return fromMinorUnits(volumeBalance(acct.Volumes, tokenAsset)), nil
}

// getAccount fetches a registered user account with its volumes.
func (s *Service) getAccount(ctx context.Context, userId string) (*shared.V2Account, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: userAddress(userId),
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, store.NotFound("user", userId)
		}
		return nil, store.StoreFailure("get account", err)
	}

	acct := resp.V2AccountResponse.Data
	if acct.Metadata[metaEmail] == "" {
		// Formance accounts exist implicitly; only registered users carry metadata.
		return nil, store.NotFound("user", userId)
	}
	return &acct, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// fromMinorUnits converts a TOKEN amount in hundredths to a decimal.
func fromMinorUnits(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -tokenPrecision)
}

// toMinorUnits converts a non-negative decimal to hundredths, rejecting finer amounts.
func toMinorUnits(amount decimal.Decimal) (string, error) {
	shifted := amount.Shift(tokenPrecision)
	if !shifted.IsInteger() {
		return "", fmt.Errorf("%w: %s has more than %d decimal places", store.ErrInvalidAmount, amount, tokenPrecision)
	}
	return shifted.BigInt().String(), nil
}
