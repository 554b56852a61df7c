package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cardms/internal/audit"
	"cardms/internal/auth"
	"cardms/internal/db"
	"cardms/internal/models"
	"cardms/internal/money"
	"cardms/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Principal = auth.Principal

type UserStore interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type PANGenerator interface {
	Generate() (string, error)
}

// CardCodec extends the masking view of the codec with encryption, needed
// only at card-creation time.
type CardCodec interface {
	PANCodec
	Encrypt(plaintext string) (string, error)
}

// maxGenerationAttempts bounds the generate-encrypt-check loop. The random
// space is fifteen digits, so hitting this cap means something other than
// bad luck is wrong.
const maxGenerationAttempts = 1000

// CardService owns the card lifecycle: creation, the
// ACTIVE/BLOCKED/EXPIRED state machine, deletion and the expiry sweep.
type CardService struct {
	txRunner db.TxRunner
	cards    CardStore
	users    UserStore
	gen      PANGenerator
	codec    CardCodec
	auditor  AuditSink
	log      *logrus.Logger
}

func NewCardService(txRunner db.TxRunner, cards CardStore, users UserStore, gen PANGenerator, codec CardCodec, auditor AuditSink, log *logrus.Logger) *CardService {
	return &CardService{
		txRunner: txRunner,
		cards:    cards,
		users:    users,
		gen:      gen,
		codec:    codec,
		auditor:  auditor,
		log:      log,
	}
}

type CreateCardRequest struct {
	OwnerID        string
	ExpirationDate time.Time
	InitialBalance decimal.Decimal
	ClientIP       string
}

type CardView struct {
	ID             string            `json:"id"`
	MaskedNumber   string            `json:"masked_number"`
	OwnerID        string            `json:"owner_id"`
	ExpirationDate time.Time         `json:"expiration_date"`
	Status         models.CardStatus `json:"status"`
	Balance        string            `json:"balance"`
	CreatedAt      time.Time         `json:"created_at"`
}

type BalanceView struct {
	CardID       string `json:"card_id"`
	MaskedNumber string `json:"masked_number"`
	Balance      string `json:"balance"`
}

// CreateCard issues a new card for the given owner. Administrative
// capability required. The generation loop retries until the encrypted
// number does not collide with a stored one.
func (s *CardService) CreateCard(ctx context.Context, req CreateCardRequest, principal Principal) (CardView, error) {
	if !principal.IsAdmin() {
		return CardView{}, ErrForbidden
	}
	owner, err := s.users.GetByID(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CardView{}, ErrUserNotFound
		}
		return CardView{}, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !req.ExpirationDate.After(today) {
		return CardView{}, ErrInvalidExpiration
	}
	if req.InitialBalance.Sign() < 0 {
		return CardView{}, ErrNegativeBalance
	}

	numberEncrypted, err := s.uniqueEncryptedNumber(ctx)
	if err != nil {
		return CardView{}, err
	}

	input := store.CardInput{
		ID:              uuid.NewString(),
		NumberEncrypted: numberEncrypted,
		OwnerID:         owner.ID,
		ExpirationDate:  req.ExpirationDate,
		Status:          models.CardActive,
		Balance:         req.InitialBalance,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.cards.Create(ctx, tx, input)
	})
	if err != nil {
		return CardView{}, err
	}

	masked := s.codec.Mask(numberEncrypted)
	s.log.WithFields(logrus.Fields{
		"card_id": input.ID,
		"owner":   owner.ID,
		"number":  masked,
	}).Info("card created")
	s.auditor.Record(audit.Event{
		ActorID:    principal.UserID,
		Action:     audit.ActionCreate,
		EntityType: "card",
		EntityID:   input.ID,
		Details:    fmt.Sprintf(`{"owner_id":%q,"number":%q}`, owner.ID, masked),
		IPAddress:  req.ClientIP,
	})
	return CardView{
		ID:             input.ID,
		MaskedNumber:   masked,
		OwnerID:        owner.ID,
		ExpirationDate: req.ExpirationDate,
		Status:         models.CardActive,
		Balance:        money.Format(req.InitialBalance),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (s *CardService) uniqueEncryptedNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		number, err := s.gen.Generate()
		if err != nil {
			return "", err
		}
		encrypted, err := s.codec.Encrypt(number)
		if err != nil {
			return "", err
		}
		exists, err := s.cards.ExistsByEncryptedNumber(ctx, encrypted)
		if err != nil {
			return "", err
		}
		if !exists {
			return encrypted, nil
		}
	}
	return "", ErrGenerationExhausted
}

func (s *CardService) GetCard(ctx context.Context, cardID string, principal Principal) (CardView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CardView{}, ErrCardNotFound
		}
		return CardView{}, err
	}
	if card.OwnerID != principal.UserID && !principal.IsAdmin() {
		return CardView{}, ErrForbidden
	}
	return s.toCardView(card, principal), nil
}

func (s *CardService) GetBalance(ctx context.Context, cardID string, principal Principal) (BalanceView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BalanceView{}, ErrCardNotFound
		}
		return BalanceView{}, err
	}
	if card.OwnerID != principal.UserID && !principal.IsAdmin() {
		return BalanceView{}, ErrForbidden
	}
	return BalanceView{
		CardID:       card.ID,
		MaskedNumber: s.codec.Mask(card.NumberEncrypted),
		Balance:      money.Format(card.Balance),
	}, nil
}

func (s *CardService) ListOwnCards(ctx context.Context, principal Principal, limit, offset int) ([]CardView, error) {
	cards, err := s.cards.ListByOwner(ctx, principal.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.toCardViews(cards, principal), nil
}

func (s *CardService) ListAllCards(ctx context.Context, status, ownerID string, principal Principal, limit, offset int) ([]CardView, error) {
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	cards, err := s.cards.ListAll(ctx, status, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.toCardViews(cards, principal), nil
}

// BlockCard is available to the card's owner and to admins. Blocking an
// already-blocked card is an error, not a no-op.
func (s *CardService) BlockCard(ctx context.Context, cardID string, principal Principal, clientIP string) (CardView, error) {
	var card models.Card
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		card, err = s.cards.GetForUpdate(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if card.OwnerID != principal.UserID && !principal.IsAdmin() {
			return ErrForbidden
		}
		if card.Status == models.CardBlocked {
			return ErrCardBlocked
		}
		return s.cards.UpdateStatus(ctx, tx, card.ID, models.CardBlocked)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CardView{}, ErrCardNotFound
		}
		return CardView{}, err
	}
	card.Status = models.CardBlocked

	s.log.WithField("card_id", card.ID).Info("card blocked")
	s.auditor.Record(audit.Event{
		ActorID:    principal.UserID,
		Action:     audit.ActionBlock,
		EntityType: "card",
		EntityID:   card.ID,
		Details:    fmt.Sprintf(`{"number":%q}`, s.codec.Mask(card.NumberEncrypted)),
		IPAddress:  clientIP,
	})
	return s.toCardView(card, principal), nil
}

// ActivateCard re-activates a blocked card. Admin only, and never past the
// expiration date.
func (s *CardService) ActivateCard(ctx context.Context, cardID string, principal Principal, clientIP string) (CardView, error) {
	if !principal.IsAdmin() {
		return CardView{}, ErrForbidden
	}
	var card models.Card
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		card, err = s.cards.GetForUpdate(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if card.Status == models.CardActive {
			return ErrCardAlreadyActive
		}
		if card.Expired(time.Now().UTC()) {
			return ErrCardExpired
		}
		return s.cards.UpdateStatus(ctx, tx, card.ID, models.CardActive)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CardView{}, ErrCardNotFound
		}
		return CardView{}, err
	}
	card.Status = models.CardActive

	s.log.WithField("card_id", card.ID).Info("card activated")
	s.auditor.Record(audit.Event{
		ActorID:    principal.UserID,
		Action:     audit.ActionActivate,
		EntityType: "card",
		EntityID:   card.ID,
		Details:    fmt.Sprintf(`{"number":%q}`, s.codec.Mask(card.NumberEncrypted)),
		IPAddress:  clientIP,
	})
	return s.toCardView(card, principal), nil
}

// DeleteCard removes a card and, through the storage layer, every
// transaction referencing it. Admin only.
func (s *CardService) DeleteCard(ctx context.Context, cardID string, principal Principal, clientIP string) error {
	if !principal.IsAdmin() {
		return ErrForbidden
	}
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCardNotFound
		}
		return err
	}
	masked := s.codec.Mask(card.NumberEncrypted)
	deleted, err := s.cards.Delete(ctx, cardID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrCardNotFound
	}
	s.log.WithFields(logrus.Fields{"card_id": cardID, "number": masked}).Info("card deleted")
	s.auditor.Record(audit.Event{
		ActorID:    principal.UserID,
		Action:     audit.ActionDelete,
		EntityType: "card",
		EntityID:   cardID,
		Details:    fmt.Sprintf(`{"number":%q}`, masked),
		IPAddress:  clientIP,
	})
	return nil
}

// ExpireCards is the periodic sweep that marks cards past their expiration
// date as EXPIRED. Usability checks the date independently, so a card the
// sweep has not reached yet still cannot transfer.
func (s *CardService) ExpireCards(ctx context.Context) (int, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	expired, err := s.cards.ListExpiredAsOf(ctx, today)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, card := range expired {
			if err := s.cards.UpdateStatus(ctx, tx, card.ID, models.CardExpired); err != nil {
				return err
			}
			s.log.WithField("card_id", card.ID).Debug("card marked expired")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.WithField("count", len(expired)).Info("expired cards updated")
	return len(expired), nil
}

func (s *CardService) toCardView(card models.Card, principal Principal) CardView {
	masked := s.codec.Mask(card.NumberEncrypted)
	if principal.IsAdmin() {
		masked = s.codec.MaskPrivileged(card.NumberEncrypted)
	}
	return CardView{
		ID:             card.ID,
		MaskedNumber:   masked,
		OwnerID:        card.OwnerID,
		ExpirationDate: card.ExpirationDate,
		Status:         card.Status,
		Balance:        money.Format(card.Balance),
		CreatedAt:      card.CreatedAt,
	}
}

func (s *CardService) toCardViews(cards []models.Card, principal Principal) []CardView {
	views := make([]CardView, 0, len(cards))
	for _, card := range cards {
		views = append(views, s.toCardView(card, principal))
	}
	return views
}
