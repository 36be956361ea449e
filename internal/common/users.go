/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"context"
	"fmt"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id      string
	Name    string
	Email   string
	Role    models.Role
	Balance decimal.Decimal
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		Id:      u.Id,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Balance: u.Balance,
	}
}

// LoadUsers retrieves users based on an optional email filter.
// If emailFilter is provided, returns a single user with that email.
// If emailFilter is empty, returns all users.
func LoadUsers(ctx context.Context, users store.WalletStore, emailFilter string) ([]UserInfo, error) {
	var out []UserInfo

	if emailFilter != "" {
		zap.L().Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := users.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		out = append(out, userInfo(user))
	} else {
		all, err := users.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for i := range all {
			out = append(out, userInfo(&all[i]))
		}
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(out)))
	return out, nil
}
