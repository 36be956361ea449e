package store

import (
	"context"
	"strings"

	"circlechain-wallet-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateUserParams contains the parameters for registering a user.
type CreateUserParams struct {
	Id             string
	Email          string
	Name           string
	PasswordHash   string
	Role           models.Role
	OpeningBalance decimal.Decimal
}

// EntryParams describes a ledger entry to append. A non-empty Reference
// makes the entry idempotent: a second entry with the same reference is
// rejected with ErrConflict and its balance change is not applied.
type EntryParams struct {
	Reference string
	UserId    string
	Kind      models.TransactionKind
	RelatedId *int64
	Amount    *decimal.Decimal
	Details   *string
}

// ApplyParams describes a balance change. Entry is appended in the same unit;
// a nil Entry is a bare balance adjustment.
type ApplyParams struct {
	UserId string
	Delta  decimal.Decimal
	Entry  *EntryParams
}

// ApplyResult is the committed outcome of ApplyBalanceChange.
type ApplyResult struct {
	UserId      string
	Balance     decimal.Decimal
	Transaction *models.Transaction
}

// WalletStore defines the contract that every ledger backend (SQLite, Postgres, Formance) must satisfy.
type WalletStore interface {
	// --- Users ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)

	// --- Balances ---
	GetBalance(ctx context.Context, userId string) (decimal.Decimal, error)
	// ApplyBalanceChange checks, writes and logs atomically. It returns
	// *InsufficientFundsError when the balance would drop below zero and
	// leaves both the balance and the log untouched on any error.
	ApplyBalanceChange(ctx context.Context, params ApplyParams) (*ApplyResult, error)
	ReconcileBalance(ctx context.Context, userId string) (*models.Reconciliation, error)

	// --- Ledger ---
	AppendEntry(ctx context.Context, params EntryParams) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, userId string, limit int) ([]models.Transaction, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}

// ProductUpdate holds the optional fields of a product edit.
type ProductUpdate struct {
	Name        *string
	Description *string
	Category    *models.ProductCategory
	Price       *decimal.Decimal
	Weight      *decimal.Decimal
	Status      *string
	ImpactScore *decimal.Decimal
}

// MarketStore persists the marketplace entities around the wallet.
type MarketStore interface {
	// --- Products ---
	CreateProduct(ctx context.Context, p models.Product) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProductsByProducer(ctx context.Context, producerId string) ([]models.Product, error)
	ListAvailableProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id int64, producerId string, upd ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64, producerId string) error

	// --- Orders ---
	CreateOrder(ctx context.Context, o models.Order) (*models.Order, error)
	SetOrderStatus(ctx context.Context, id int64, status, paymentReference string) (*models.Order, error)
	ListOrdersByConsumer(ctx context.Context, consumerId string) ([]models.Order, error)

	// --- Recycle requests ---
	CreateRecycleRequest(ctx context.Context, r models.RecycleRequest) (*models.RecycleRequest, error)
	GetRecycleRequest(ctx context.Context, id int64) (*models.RecycleRequest, error)
	ListRecycleRequestsByStatus(ctx context.Context, status string) ([]models.RecycleRequest, error)
	ListRecycleRequestsByConsumer(ctx context.Context, consumerId string) ([]models.RecycleRequest, error)
	ListRecycleRequestsByRecycler(ctx context.Context, recyclerId string) ([]models.RecycleRequest, error)
	// AcceptRecycleRequest moves a submitted request to accepted; any other state is a Conflict.
	AcceptRecycleRequest(ctx context.Context, id int64, recyclerId string) (*models.RecycleRequest, error)
	// CompleteRecycleRequest requires the assigned recycler and an accepted or in-process request.
	CompleteRecycleRequest(ctx context.Context, id int64, recyclerId string) (*models.RecycleRequest, error)

	// --- Raw materials ---
	CreateRawMaterial(ctx context.Context, m models.RawMaterial) (*models.RawMaterial, error)
	GetRawMaterial(ctx context.Context, id int64) (*models.RawMaterial, error)
	ListAvailableMaterials(ctx context.Context) ([]models.RawMaterial, error)
	ListMaterialsByRecycler(ctx context.Context, recyclerId string) ([]models.RawMaterial, error)
	// ReserveMaterialStock decrements stock only if enough remains; it marks the material sold at zero.
	ReserveMaterialStock(ctx context.Context, id int64, quantity decimal.Decimal) (*models.RawMaterial, error)
	RestoreMaterialStock(ctx context.Context, id int64, quantity decimal.Decimal) error
	CreateMaterialPurchase(ctx context.Context, p models.MaterialPurchase) (*models.MaterialPurchase, error)

	// --- Reporting ---
	ImpactSummary(ctx context.Context) (*models.ImpactSummary, error)
}

// NewReference returns a display id for a ledger entry. It is generated once,
// before the entry is written, and persisted with it.
func NewReference() string {
	return "tx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EntryReference is the reference an entry is written with.
func EntryReference(e EntryParams) string {
	if e.Reference != "" {
		return e.Reference
	}
	return NewReference()
}

// DuplicateReference is the error for an entry whose reference is already in the ledger.
func DuplicateReference(reference string) error {
	return Conflict("ledger entry " + reference + " already recorded")
}
