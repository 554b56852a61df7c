package handlers

import (
	"context"

	"cardms/internal/audit"
	"cardms/internal/auth"
	"cardms/internal/models"
	"cardms/internal/services"
	"cardms/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByID(ctx context.Context, userID string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Delete(ctx context.Context, userID string) (int64, error)
}

type CapabilityStore interface {
	Grant(ctx context.Context, tx store.Execer, userID string, capability auth.Capability, grantedBy *string) error
	ListForUser(ctx context.Context, userID string) (auth.CapabilitySet, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditReader interface {
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

// AuditSink feeds the asynchronous audit recorder; it never blocks and
// never fails the request.
type AuditSink interface {
	Record(event audit.Event)
}

type CardService interface {
	CreateCard(ctx context.Context, req services.CreateCardRequest, principal auth.Principal) (services.CardView, error)
	GetCard(ctx context.Context, cardID string, principal auth.Principal) (services.CardView, error)
	GetBalance(ctx context.Context, cardID string, principal auth.Principal) (services.BalanceView, error)
	ListOwnCards(ctx context.Context, principal auth.Principal, limit, offset int) ([]services.CardView, error)
	ListAllCards(ctx context.Context, status, ownerID string, principal auth.Principal, limit, offset int) ([]services.CardView, error)
	BlockCard(ctx context.Context, cardID string, principal auth.Principal, clientIP string) (services.CardView, error)
	ActivateCard(ctx context.Context, cardID string, principal auth.Principal, clientIP string) (services.CardView, error)
	DeleteCard(ctx context.Context, cardID string, principal auth.Principal, clientIP string) error
	ExpireCards(ctx context.Context) (int, error)
}

type TransferService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (services.TransferOutcome, error)
	GetTransaction(ctx context.Context, transactionID string, principal auth.Principal) (services.TransactionView, error)
	ListCardTransactions(ctx context.Context, cardID string, principal auth.Principal, limit, offset int) ([]services.TransactionView, error)
	ListUserTransactions(ctx context.Context, principal auth.Principal, limit, offset int) ([]services.TransactionView, error)
	ListAllTransactions(ctx context.Context, status string, principal auth.Principal, limit, offset int) ([]services.TransactionView, error)
}
