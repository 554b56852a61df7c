package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"cardms/internal/audit"
	"cardms/internal/db"
	"cardms/internal/models"
	"cardms/internal/money"
	"cardms/internal/store"
	"cardms/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CardStore interface {
	Create(ctx context.Context, tx store.Execer, input store.CardInput) error
	GetByID(ctx context.Context, cardID string) (models.Card, error)
	GetForUpdate(ctx context.Context, tx store.Getter, cardID string) (models.Card, error)
	UpdateBalance(ctx context.Context, tx store.Execer, cardID string, balance decimal.Decimal) error
	UpdateStatus(ctx context.Context, tx store.Execer, cardID string, status models.CardStatus) error
	Delete(ctx context.Context, cardID string) (int64, error)
	ExistsByEncryptedNumber(ctx context.Context, numberEncrypted string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Card, error)
	ListAll(ctx context.Context, status, ownerID string, limit, offset int) ([]models.Card, error)
	ListExpiredAsOf(ctx context.Context, asOf time.Time) ([]models.Card, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	GetByID(ctx context.Context, transactionID string) (store.TransactionDetail, error)
	ListByCard(ctx context.Context, cardID string, limit, offset int) ([]store.TransactionDetail, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]store.TransactionDetail, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]store.TransactionDetail, error)
}

// AuditSink is fire-and-forget: recording never fails the triggering
// operation.
type AuditSink interface {
	Record(event audit.Event)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// PANCodec is the slice of the codec the engine needs: masked display
// forms for transaction views and audit details.
type PANCodec interface {
	Mask(encrypted string) string
	MaskPrivileged(encrypted string) string
}

// TransferService moves money between two cards of the same owner. Each
// transfer runs inside one storage transaction that locks both card rows
// in ascending id order, so concurrent transfers over the same pair cannot
// read stale balances or deadlock.
type TransferService struct {
	txRunner db.TxRunner
	cards    CardStore
	txs      TransactionStore
	codec    PANCodec
	auditor  AuditSink
	hub      BalanceHub
	log      *logrus.Logger
}

func NewTransferService(txRunner db.TxRunner, cards CardStore, txs TransactionStore, codec PANCodec, auditor AuditSink, hub BalanceHub, log *logrus.Logger) *TransferService {
	return &TransferService{
		txRunner: txRunner,
		cards:    cards,
		txs:      txs,
		codec:    codec,
		auditor:  auditor,
		hub:      hub,
		log:      log,
	}
}

type TransferRequest struct {
	FromCardID string
	ToCardID   string
	Amount     decimal.Decimal
	ActorID    string
	ClientIP   string
}

// TransferOutcome is the reified result of a transfer attempt. Business
// rule violations come back as Status FAILED with a persisted transaction
// row; only missing cards and unrecoverable infrastructure failures are
// returned as errors.
type TransferOutcome struct {
	TransactionID string
	Status        models.TransactionStatus
	FailureReason string
	FromCardID    string
	ToCardID      string
	FromMasked    string
	ToMasked      string
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

func (o TransferOutcome) Succeeded() bool {
	return o.Status == models.TransactionSuccess
}

func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (TransferOutcome, error) {
	var outcome TransferOutcome
	var fromCard, toCard models.Card
	var fromAfter, toAfter decimal.Decimal
	locked := false

	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		fromCard, toCard, err = s.lockTwoCards(ctx, tx, req.FromCardID, req.ToCardID)
		if err != nil {
			return err
		}
		locked = true

		if reason := validateTransfer(fromCard, toCard, req, time.Now().UTC()); reason != "" {
			return s.recordOutcome(ctx, tx, &outcome, fromCard, toCard, req.Amount, models.TransactionFailed, reason)
		}

		fromAfter = fromCard.Balance.Sub(req.Amount)
		toAfter = toCard.Balance.Add(req.Amount)
		if err := s.cards.UpdateBalance(ctx, tx, fromCard.ID, fromAfter); err != nil {
			return err
		}
		if err := s.cards.UpdateBalance(ctx, tx, toCard.ID, toAfter); err != nil {
			return err
		}
		return s.recordOutcome(ctx, tx, &outcome, fromCard, toCard, req.Amount, models.TransactionSuccess, "")
	})
	if err != nil {
		if !locked || errors.Is(err, sql.ErrNoRows) {
			// Nothing was definitively read: raise instead of recording.
			if errors.Is(err, sql.ErrNoRows) {
				return TransferOutcome{}, ErrCardNotFound
			}
			return TransferOutcome{}, err
		}
		// The cards were locked and read, so the failed attempt is part of
		// the transfer history: record it in a fresh transaction with a
		// generic reason while the real cause goes to the log.
		s.log.WithError(err).WithFields(logrus.Fields{
			"from_card": req.FromCardID,
			"to_card":   req.ToCardID,
		}).Error("transfer failed with infrastructure error")
		recordErr := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.recordOutcome(ctx, tx, &outcome, fromCard, toCard, req.Amount, models.TransactionFailed, ReasonInternal)
		})
		if recordErr != nil {
			return TransferOutcome{}, err
		}
		return outcome, nil
	}

	if outcome.Succeeded() {
		s.emitTransferAudit(req, outcome)
		s.hub.BroadcastBalance(fromCard.OwnerID, websocket.BalanceUpdate{
			CardID:       fromCard.ID,
			MaskedNumber: outcome.FromMasked,
			Balance:      money.Format(fromAfter),
		})
		s.hub.BroadcastBalance(toCard.OwnerID, websocket.BalanceUpdate{
			CardID:       toCard.ID,
			MaskedNumber: outcome.ToMasked,
			Balance:      money.Format(toAfter),
		})
	}
	return outcome, nil
}

// validateTransfer applies the business checks in their fixed order and
// returns the failure reason of the first check that does not hold, or ""
// when the transfer may proceed.
func validateTransfer(fromCard, toCard models.Card, req TransferRequest, today time.Time) string {
	switch {
	case fromCard.OwnerID != toCard.OwnerID:
		return ReasonCrossOwner
	case fromCard.OwnerID != req.ActorID:
		return ReasonNotOwnedByActor
	case fromCard.ID == toCard.ID:
		return ReasonSameCard
	case req.Amount.Sign() <= 0:
		return ReasonNonPositiveAmount
	case !fromCard.Usable(today):
		return ReasonSourceUnusable
	case !toCard.Usable(today):
		return ReasonDestinationUnusable
	case fromCard.Balance.LessThan(req.Amount):
		return ReasonInsufficientBalance
	}
	return ""
}

func (s *TransferService) recordOutcome(ctx context.Context, tx store.Execer, out *TransferOutcome, fromCard, toCard models.Card, amount decimal.Decimal, status models.TransactionStatus, reason string) error {
	input := store.TransactionInput{
		ID:         uuid.NewString(),
		FromCardID: fromCard.ID,
		ToCardID:   toCard.ID,
		Amount:     amount,
		Status:     status,
	}
	if reason != "" {
		input.FailureReason = &reason
	}
	if err := s.txs.Create(ctx, tx, input); err != nil {
		return err
	}
	*out = TransferOutcome{
		TransactionID: input.ID,
		Status:        status,
		FailureReason: reason,
		FromCardID:    fromCard.ID,
		ToCardID:      toCard.ID,
		FromMasked:    s.codec.Mask(fromCard.NumberEncrypted),
		ToMasked:      s.codec.Mask(toCard.NumberEncrypted),
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}
	return nil
}

// lockTwoCards acquires FOR UPDATE locks on both rows in ascending card-id
// order regardless of transfer direction, which prevents deadlock between
// opposing transfers over the same pair. Equal ids lock a single row.
func (s *TransferService) lockTwoCards(ctx context.Context, tx store.Getter, fromID, toID string) (models.Card, models.Card, error) {
	if fromID == toID {
		card, err := s.cards.GetForUpdate(ctx, tx, fromID)
		if err != nil {
			return models.Card{}, models.Card{}, err
		}
		return card, card, nil
	}
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := s.cards.GetForUpdate(ctx, tx, firstID)
	if err != nil {
		return models.Card{}, models.Card{}, err
	}
	second, err := s.cards.GetForUpdate(ctx, tx, secondID)
	if err != nil {
		return models.Card{}, models.Card{}, err
	}
	if firstID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

func (s *TransferService) emitTransferAudit(req TransferRequest, outcome TransferOutcome) {
	details, _ := json.Marshal(map[string]string{
		"transaction_id": outcome.TransactionID,
		"from":           outcome.FromMasked,
		"to":             outcome.ToMasked,
		"amount":         money.Format(outcome.Amount),
	})
	s.auditor.Record(audit.Event{
		ActorID:    req.ActorID,
		Action:     audit.ActionTransfer,
		EntityType: "transaction",
		EntityID:   outcome.TransactionID,
		Details:    string(details),
		IPAddress:  req.ClientIP,
	})
}

// GetTransaction returns a single transaction, visible to participants and
// admins only.
func (s *TransferService) GetTransaction(ctx context.Context, transactionID string, principal Principal) (TransactionView, error) {
	row, err := s.txs.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TransactionView{}, ErrTransactionNotFound
		}
		return TransactionView{}, err
	}
	if row.FromOwnerID != principal.UserID && row.ToOwnerID != principal.UserID && !principal.IsAdmin() {
		return TransactionView{}, ErrForbidden
	}
	return s.toTransactionView(row), nil
}

func (s *TransferService) ListCardTransactions(ctx context.Context, cardID string, principal Principal, limit, offset int) ([]TransactionView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	if card.OwnerID != principal.UserID && !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	rows, err := s.txs.ListByCard(ctx, cardID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.toTransactionViews(rows), nil
}

func (s *TransferService) ListUserTransactions(ctx context.Context, principal Principal, limit, offset int) ([]TransactionView, error) {
	rows, err := s.txs.ListByOwner(ctx, principal.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.toTransactionViews(rows), nil
}

func (s *TransferService) ListAllTransactions(ctx context.Context, status string, principal Principal, limit, offset int) ([]TransactionView, error) {
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	rows, err := s.txs.ListAll(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.toTransactionViews(rows), nil
}

type TransactionView struct {
	ID            string                   `json:"id"`
	FromCardID    string                   `json:"from_card_id"`
	ToCardID      string                   `json:"to_card_id"`
	FromMasked    string                   `json:"from_masked_number"`
	ToMasked      string                   `json:"to_masked_number"`
	Amount        string                   `json:"amount"`
	Status        models.TransactionStatus `json:"status"`
	FailureReason *string                  `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

func (s *TransferService) toTransactionView(row store.TransactionDetail) TransactionView {
	return TransactionView{
		ID:            row.ID,
		FromCardID:    row.FromCardID,
		ToCardID:      row.ToCardID,
		FromMasked:    s.codec.Mask(row.FromNumberEncrypted),
		ToMasked:      s.codec.Mask(row.ToNumberEncrypted),
		Amount:        money.Format(row.Amount),
		Status:        row.Status,
		FailureReason: row.FailureReason,
		CreatedAt:     row.CreatedAt,
	}
}

func (s *TransferService) toTransactionViews(rows []store.TransactionDetail) []TransactionView {
	views := make([]TransactionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.toTransactionView(row))
	}
	return views
}
