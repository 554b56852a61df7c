package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardActive  CardStatus = "ACTIVE"
	CardBlocked CardStatus = "BLOCKED"
	CardExpired CardStatus = "EXPIRED"
)

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Card is the persisted card row. NumberEncrypted is the only stored form
// of the PAN; cleartext numbers exist transiently during generation and
// masking and are never serialized.
type Card struct {
	ID              string          `db:"id" json:"id"`
	NumberEncrypted string          `db:"number_encrypted" json:"-"`
	OwnerID         string          `db:"owner_id" json:"owner_id"`
	ExpirationDate  time.Time       `db:"expiration_date" json:"expiration_date"`
	Status          CardStatus      `db:"status" json:"status"`
	Balance         decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the card is past its expiration date as of the
// given day. The stored status is intentionally not consulted: a stale
// ACTIVE status must never grant usability past expiry.
func (c Card) Expired(today time.Time) bool {
	return today.Truncate(24 * time.Hour).After(c.ExpirationDate)
}

// Usable is the predicate the transfer engine consults for both sides of a
// transfer.
func (c Card) Usable(today time.Time) bool {
	return c.Status == CardActive && !c.Expired(today)
}

// Transaction rows are append-only: a failed attempt is recorded as its own
// row and nothing ever updates a transaction after insert.
type Transaction struct {
	ID            string            `db:"id" json:"id"`
	FromCardID    string            `db:"from_card_id" json:"from_card_id"`
	ToCardID      string            `db:"to_card_id" json:"to_card_id"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Status        TransactionStatus `db:"status" json:"status"`
	FailureReason *string           `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Details    string    `db:"details" json:"details"`
	IPAddress  *string   `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
