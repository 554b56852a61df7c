package store

import (
	"context"
	"time"

	"cardms/internal/models"

	"github.com/shopspring/decimal"
)

type CardStore struct {
	db DB
}

func NewCardStore(db DB) *CardStore {
	return &CardStore{db: db}
}

type CardInput struct {
	ID              string
	NumberEncrypted string
	OwnerID         string
	ExpirationDate  time.Time
	Status          models.CardStatus
	Balance         decimal.Decimal
}

func (s *CardStore) Create(ctx context.Context, tx Execer, input CardInput) error {
	query := `
		INSERT INTO cards (id, number_encrypted, owner_id, expiration_date, status, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.NumberEncrypted, input.OwnerID, input.ExpirationDate, input.Status, input.Balance,
	)
	return err
}

func (s *CardStore) GetByID(ctx context.Context, cardID string) (models.Card, error) {
	var row models.Card
	err := s.db.GetContext(ctx, &row, `
		SELECT id, number_encrypted, owner_id, expiration_date, status, balance, created_at, updated_at
		FROM cards
		WHERE id = $1
	`, cardID)
	if err != nil {
		return models.Card{}, err
	}
	return row, nil
}

// GetForUpdate loads a card row under a row-level write lock. Callers
// acquire locks in ascending card-id order to keep lock ordering
// deterministic across concurrent transfers.
func (s *CardStore) GetForUpdate(ctx context.Context, tx Getter, cardID string) (models.Card, error) {
	var row models.Card
	err := tx.GetContext(ctx, &row, `
		SELECT id, number_encrypted, owner_id, expiration_date, status, balance, created_at, updated_at
		FROM cards
		WHERE id = $1
		FOR UPDATE
	`, cardID)
	if err != nil {
		return models.Card{}, err
	}
	return row, nil
}

func (s *CardStore) UpdateBalance(ctx context.Context, tx Execer, cardID string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, cardID)
	return err
}

func (s *CardStore) UpdateStatus(ctx context.Context, tx Execer, cardID string, status models.CardStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, cardID)
	return err
}

func (s *CardStore) Delete(ctx context.Context, cardID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExistsByEncryptedNumber backs the uniqueness check in the card-creation
// loop. Deterministic encryption makes the ciphertext comparable without
// touching cleartext.
func (s *CardStore) ExistsByEncryptedNumber(ctx context.Context, numberEncrypted string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM cards WHERE number_encrypted = $1)
	`, numberEncrypted)
	return exists, err
}

func (s *CardStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Card, error) {
	var rows []models.Card
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, number_encrypted, owner_id, expiration_date, status, balance, created_at, updated_at
		FROM cards
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CardStore) ListAll(ctx context.Context, status, ownerID string, limit, offset int) ([]models.Card, error) {
	query := `
		SELECT id, number_encrypted, owner_id, expiration_date, status, balance, created_at, updated_at
		FROM cards
		WHERE 1 = 1
	`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += " AND status = $" + itoa(len(args))
	}
	if ownerID != "" {
		args = append(args, ownerID)
		query += " AND owner_id = $" + itoa(len(args))
	}
	args = append(args, limit, offset)
	query += " ORDER BY created_at DESC LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))
	var rows []models.Card
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExpiredAsOf returns cards past their expiration date whose stored
// status has not caught up yet. Used by the periodic expiry sweep.
func (s *CardStore) ListExpiredAsOf(ctx context.Context, asOf time.Time) ([]models.Card, error) {
	var rows []models.Card
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, number_encrypted, owner_id, expiration_date, status, balance, created_at, updated_at
		FROM cards
		WHERE expiration_date < $1 AND status <> $2
		ORDER BY expiration_date
	`, asOf, models.CardExpired)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
