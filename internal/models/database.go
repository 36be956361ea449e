package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the marketplace role a user signed up with
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
	RoleRecycler Role = "recycler"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleConsumer, RoleRecycler, RoleAdmin:
		return true
	}
	return false
}

// TransactionKind enumerates ledger entry kinds
type TransactionKind string

const (
	KindPayment          TransactionKind = "payment"
	KindReward           TransactionKind = "reward"
	KindRecyclingReward  TransactionKind = "recycling_reward"
	KindProductCreated   TransactionKind = "product_created"
	KindProductPurchase  TransactionKind = "product_purchase"
	KindRecycleRequest   TransactionKind = "recycle_request"
	KindRecycleAccept    TransactionKind = "recycle_accept"
	KindRecycleComplete  TransactionKind = "recycle_complete"
	KindMaterialPurchase TransactionKind = "material_purchase"
	KindMaterialCreated  TransactionKind = "material_created"

	// KindAdjustment backs a bare balance adjustment. It counts towards
	// reconciliation and is hidden from history.
	KindAdjustment TransactionKind = "adjustment"
)

// TransactionStatusConfirmed is the only status a committed entry can have
const TransactionStatusConfirmed = "confirmed"

// User represents a marketplace user and the wallet balance they own
type User struct {
	Id             string          `db:"id"`
	Email          string          `db:"email"`
	Name           string          `db:"name"`
	PasswordHash   string          `db:"password_hash"`
	Role           Role            `db:"role"`
	Balance        decimal.Decimal `db:"balance"`
	OpeningBalance decimal.Decimal `db:"opening_balance"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Transaction represents one immutable ledger entry
type Transaction struct {
	Id           int64            `db:"id"`
	Reference    string           `db:"reference"`
	UserId       string           `db:"user_id"`
	Kind         TransactionKind  `db:"kind"`
	RelatedId    *int64           `db:"related_id"`
	Amount       *decimal.Decimal `db:"amount"`
	Delta        decimal.Decimal  `db:"delta"`
	BalanceAfter decimal.Decimal  `db:"balance_after"`
	Details      *string          `db:"details"`
	Status       string           `db:"status"`
	CreatedAt    time.Time        `db:"created_at"`
}

// Reconciliation compares a stored balance with the fold over its ledger
type Reconciliation struct {
	UserId          string
	StoredBalance   decimal.Decimal
	OpeningBalance  decimal.Decimal
	LedgerDelta     decimal.Decimal
	ComputedBalance decimal.Decimal
	EntryCount      int64
}

// Balanced reports whether the stored balance matches the ledger
func (r Reconciliation) Balanced() bool {
	return r.StoredBalance.Equal(r.ComputedBalance)
}
