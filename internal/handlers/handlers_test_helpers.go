package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"cardms/internal/audit"
	"cardms/internal/auth"
	"cardms/internal/config"
	"cardms/internal/middleware"
	"cardms/internal/models"
	"cardms/internal/services"
	"cardms/internal/store"
	"cardms/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	deleteFn     func(ctx context.Context, userID string) (int64, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) Delete(ctx context.Context, userID string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, userID)
}

type stubCapabilityStore struct {
	grantFn       func(ctx context.Context, tx store.Execer, userID string, capability auth.Capability, grantedBy *string) error
	listForUserFn func(ctx context.Context, userID string) (auth.CapabilitySet, error)
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubCapabilityStore) Grant(ctx context.Context, tx store.Execer, userID string, capability auth.Capability, grantedBy *string) error {
	if s.grantFn == nil {
		return nil
	}
	return s.grantFn(ctx, tx, userID, capability, grantedBy)
}

func (s stubCapabilityStore) ListForUser(ctx context.Context, userID string) (auth.CapabilitySet, error) {
	if s.listForUserFn == nil {
		return auth.NewCapabilitySet(), nil
	}
	return s.listForUserFn(ctx, userID)
}

func (s stubCapabilityStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditReader struct {
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditReader) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubAuditSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *stubAuditSink) Record(event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *stubAuditSink) recorded() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

type stubCardService struct {
	createFn      func(ctx context.Context, req services.CreateCardRequest, principal auth.Principal) (services.CardView, error)
	getFn         func(ctx context.Context, cardID string, principal auth.Principal) (services.CardView, error)
	getBalanceFn  func(ctx context.Context, cardID string, principal auth.Principal) (services.BalanceView, error)
	listOwnFn     func(ctx context.Context, principal auth.Principal, limit, offset int) ([]services.CardView, error)
	listAllFn     func(ctx context.Context, status, ownerID string, principal auth.Principal, limit, offset int) ([]services.CardView, error)
	blockFn       func(ctx context.Context, cardID string, principal auth.Principal, clientIP string) (services.CardView, error)
	activateFn    func(ctx context.Context, cardID string, principal auth.Principal, clientIP string) (services.CardView, error)
	deleteFn      func(ctx context.Context, cardID string, principal auth.Principal, clientIP string) error
	expireCardsFn func(ctx context.Context) (int, error)
}

func (s stubCardService) CreateCard(ctx context.Context, req services.CreateCardRequest, principal auth.Principal) (services.CardView, error) {
	if s.createFn == nil {
		return services.CardView{}, nil
	}
	return s.createFn(ctx, req, principal)
}

func (s stubCardService) GetCard(ctx context.Context, cardID string, principal auth.Principal) (services.CardView, error) {
	if s.getFn == nil {
		return services.CardView{}, nil
	}
	return s.getFn(ctx, cardID, principal)
}

func (s stubCardService) GetBalance(ctx context.Context, cardID string, principal auth.Principal) (services.BalanceView, error) {
	if s.getBalanceFn == nil {
		return services.BalanceView{}, nil
	}
	return s.getBalanceFn(ctx, cardID, principal)
}

func (s stubCardService) ListOwnCards(ctx context.Context, principal auth.Principal, limit, offset int) ([]services.CardView, error) {
	if s.listOwnFn == nil {
		return nil, nil
	}
	return s.listOwnFn(ctx, principal, limit, offset)
}

func (s stubCardService) ListAllCards(ctx context.Context, status, ownerID string, principal auth.Principal, limit, offset int) ([]services.CardView, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, status, ownerID, principal, limit, offset)
}

func (s stubCardService) BlockCard(ctx context.Context, cardID string, principal auth.Principal, clientIP string) (services.CardView, error) {
	if s.blockFn == nil {
		return services.CardView{}, nil
	}
	return s.blockFn(ctx, cardID, principal, clientIP)
}

func (s stubCardService) ActivateCard(ctx context.Context, cardID string, principal auth.Principal, clientIP string) (services.CardView, error) {
	if s.activateFn == nil {
		return services.CardView{}, nil
	}
	return s.activateFn(ctx, cardID, principal, clientIP)
}

func (s stubCardService) DeleteCard(ctx context.Context, cardID string, principal auth.Principal, clientIP string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, cardID, principal, clientIP)
}

func (s stubCardService) ExpireCards(ctx context.Context) (int, error) {
	if s.expireCardsFn == nil {
		return 0, nil
	}
	return s.expireCardsFn(ctx)
}

type stubTransferService struct {
	transferFn   func(ctx context.Context, req services.TransferRequest) (services.TransferOutcome, error)
	getFn        func(ctx context.Context, transactionID string, principal auth.Principal) (services.TransactionView, error)
	listByCardFn func(ctx context.Context, cardID string, principal auth.Principal, limit, offset int) ([]services.TransactionView, error)
	listByUserFn func(ctx context.Context, principal auth.Principal, limit, offset int) ([]services.TransactionView, error)
	listAllFn    func(ctx context.Context, status string, principal auth.Principal, limit, offset int) ([]services.TransactionView, error)
}

func (s stubTransferService) Transfer(ctx context.Context, req services.TransferRequest) (services.TransferOutcome, error) {
	if s.transferFn == nil {
		return services.TransferOutcome{}, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubTransferService) GetTransaction(ctx context.Context, transactionID string, principal auth.Principal) (services.TransactionView, error) {
	if s.getFn == nil {
		return services.TransactionView{}, nil
	}
	return s.getFn(ctx, transactionID, principal)
}

func (s stubTransferService) ListCardTransactions(ctx context.Context, cardID string, principal auth.Principal, limit, offset int) ([]services.TransactionView, error) {
	if s.listByCardFn == nil {
		return nil, nil
	}
	return s.listByCardFn(ctx, cardID, principal, limit, offset)
}

func (s stubTransferService) ListUserTransactions(ctx context.Context, principal auth.Principal, limit, offset int) ([]services.TransactionView, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, principal, limit, offset)
}

func (s stubTransferService) ListAllTransactions(ctx context.Context, status string, principal auth.Principal, limit, offset int) ([]services.TransactionView, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, status, principal, limit, offset)
}

func newTestHandler(txRunner fakeTxRunner, users UserStore, caps CapabilityStore, auditLogs AuditReader, auditor AuditSink, cards CardService, transfers TransferService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(txRunner, cfg, users, caps, auditLogs, auditor, cards, transfers, websocket.NewHub(), log)
}

func requestWithPrincipal(req *http.Request, principal auth.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), principal))
}

func adminPrincipal(userID string) auth.Principal {
	return auth.Principal{UserID: userID, Capabilities: auth.NewCapabilitySet(auth.CapAdmin)}
}

func userPrincipal(userID string) auth.Principal {
	return auth.Principal{UserID: userID, Capabilities: auth.NewCapabilitySet()}
}

func recordRequest(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func withChiParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
