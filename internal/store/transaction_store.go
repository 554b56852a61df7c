package store

import (
	"context"
	"fmt"

	"cardms/internal/models"

	"github.com/shopspring/decimal"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	ID            string
	FromCardID    string
	ToCardID      string
	Amount        decimal.Decimal
	Status        models.TransactionStatus
	FailureReason *string
}

// TransactionDetail joins the encrypted card numbers and owners of both
// sides onto the transaction row so callers can mask and authorize without
// extra lookups.
type TransactionDetail struct {
	models.Transaction
	FromNumberEncrypted string `db:"from_number_encrypted"`
	ToNumberEncrypted   string `db:"to_number_encrypted"`
	FromOwnerID         string `db:"from_owner_id"`
	ToOwnerID           string `db:"to_owner_id"`
}

const transactionDetailColumns = `
	t.id, t.from_card_id, t.to_card_id, t.amount, t.status, t.failure_reason, t.created_at,
	fc.number_encrypted AS from_number_encrypted,
	tc.number_encrypted AS to_number_encrypted,
	fc.owner_id AS from_owner_id,
	tc.owner_id AS to_owner_id
`

const transactionDetailJoins = `
	FROM transactions t
	JOIN cards fc ON fc.id = t.from_card_id
	JOIN cards tc ON tc.id = t.to_card_id
`

// Create inserts a transaction row. There is no update path: transactions
// are immutable once written.
func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, from_card_id, to_card_id, amount, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.FromCardID, input.ToCardID, input.Amount, input.Status, input.FailureReason,
	)
	return err
}

func (s *TransactionStore) GetByID(ctx context.Context, transactionID string) (TransactionDetail, error) {
	var row TransactionDetail
	err := s.db.GetContext(ctx, &row,
		"SELECT "+transactionDetailColumns+transactionDetailJoins+" WHERE t.id = $1",
		transactionID)
	if err != nil {
		return TransactionDetail{}, err
	}
	return row, nil
}

func (s *TransactionStore) ListByCard(ctx context.Context, cardID string, limit, offset int) ([]TransactionDetail, error) {
	var rows []TransactionDetail
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+transactionDetailColumns+transactionDetailJoins+`
		WHERE t.from_card_id = $1 OR t.to_card_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3`,
		cardID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]TransactionDetail, error) {
	var rows []TransactionDetail
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+transactionDetailColumns+transactionDetailJoins+`
		WHERE fc.owner_id = $1 OR tc.owner_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context, status string, limit, offset int) ([]TransactionDetail, error) {
	query := "SELECT " + transactionDetailColumns + transactionDetailJoins
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += " WHERE t.status = $1"
	}
	args = append(args, limit, offset)
	query += " ORDER BY t.created_at DESC LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))
	var rows []TransactionDetail
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}
