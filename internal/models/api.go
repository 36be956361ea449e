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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceView is the response for a balance lookup
type BalanceView struct {
	Balance decimal.Decimal `json:"balance"`
	UserId  string          `json:"user_id"`
}

// Receipt is returned by every balance-mutating wallet operation
type Receipt struct {
	TransactionId string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	ProductName   string          `json:"product_name,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id        string          `json:"id"`
	Type      TransactionKind `json:"tx_type"`
	UserId    string          `json:"user_id"`
	RelatedId *int64          `json:"related_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Details   string          `json:"details"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransactionHistory is a newest-first slice of the ledger with running totals
type TransactionHistory struct {
	Transactions []TransactionRecord `json:"transactions"`
	TotalEarned  decimal.Decimal     `json:"total_earned"`
	TotalSpent   decimal.Decimal     `json:"total_spent"`
}

// WalletSummary is the compact wallet overview
type WalletSummary struct {
	Balance            decimal.Decimal     `json:"balance"`
	TotalEarned        decimal.Decimal     `json:"total_earned"`
	TotalSpent         decimal.Decimal     `json:"total_spent"`
	RecentTransactions []TransactionRecord `json:"recent_transactions"`
}

// UserProfile is the public view of a user
type UserProfile struct {
	Id        string          `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Role      Role            `json:"role"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Profile strips credentials from a user
func (u *User) Profile() UserProfile {
	return UserProfile{
		Id:        u.Id,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Balance:   u.Balance,
		CreatedAt: u.CreatedAt,
	}
}
