package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardms/internal/auth"
	"cardms/internal/services"
)

func cardURL(path string, id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	return withChiParam(req, "id", id)
}

func TestCreateCardInvalidDate(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})
	body := `{"owner_id":"user-1","expiration_date":"not-a-date"}`
	req := httptest.NewRequest(http.MethodPost, "/cards", strings.NewReader(body))
	req = requestWithPrincipal(req, adminPrincipal("admin-1"))
	rr := recordRequest(handler.CreateCard, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateCardSuccess(t *testing.T) {
	var captured services.CreateCardRequest
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		createFn: func(_ context.Context, req services.CreateCardRequest, principal auth.Principal) (services.CardView, error) {
			if !principal.IsAdmin() {
				t.Fatalf("expected admin principal")
			}
			captured = req
			return services.CardView{ID: "card-1", MaskedNumber: "**** **** **** 9014"}, nil
		},
	}, stubTransferService{})

	body := `{"owner_id":"user-1","expiration_date":"2030-06-30","initial_balance":"1000.00"}`
	req := httptest.NewRequest(http.MethodPost, "/cards", strings.NewReader(body))
	req = requestWithPrincipal(req, adminPrincipal("admin-1"))
	rr := recordRequest(handler.CreateCard, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OwnerID != "user-1" || captured.InitialBalance.String() != "1000" {
		t.Fatalf("unexpected request: %#v", captured)
	}
	if !strings.Contains(rr.Body.String(), "**** **** **** 9014") {
		t.Fatalf("expected masked number in response: %s", rr.Body.String())
	}
}

func TestCreateCardForbidden(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		createFn: func(context.Context, services.CreateCardRequest, auth.Principal) (services.CardView, error) {
			return services.CardView{}, services.ErrForbidden
		},
	}, stubTransferService{})

	body := `{"owner_id":"user-1","expiration_date":"2030-06-30"}`
	req := httptest.NewRequest(http.MethodPost, "/cards", strings.NewReader(body))
	req = requestWithPrincipal(req, userPrincipal("user-1"))
	rr := recordRequest(handler.CreateCard, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestGetCardNotFound(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		getFn: func(context.Context, string, auth.Principal) (services.CardView, error) {
			return services.CardView{}, services.ErrCardNotFound
		},
	}, stubTransferService{})

	req := requestWithPrincipal(cardURL("/cards/ghost", "ghost"), userPrincipal("user-1"))
	rr := recordRequest(handler.GetCard, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBlockCardConflict(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		blockFn: func(context.Context, string, auth.Principal, string) (services.CardView, error) {
			return services.CardView{}, services.ErrCardBlocked
		},
	}, stubTransferService{})

	req := requestWithPrincipal(cardURL("/cards/card-1/block", "card-1"), userPrincipal("user-1"))
	rr := recordRequest(handler.BlockCard, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestActivateCardExpiredConflict(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		activateFn: func(context.Context, string, auth.Principal, string) (services.CardView, error) {
			return services.CardView{}, services.ErrCardExpired
		},
	}, stubTransferService{})

	req := requestWithPrincipal(cardURL("/cards/card-1/activate", "card-1"), adminPrincipal("admin-1"))
	rr := recordRequest(handler.ActivateCard, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestGetCardBalance(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		getBalanceFn: func(_ context.Context, cardID string, _ auth.Principal) (services.BalanceView, error) {
			return services.BalanceView{CardID: cardID, MaskedNumber: "**** **** **** 9014", Balance: "250.00"}, nil
		},
	}, stubTransferService{})

	req := requestWithPrincipal(cardURL("/cards/card-1/balance", "card-1"), userPrincipal("user-1"))
	rr := recordRequest(handler.GetCardBalance, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "250.00") {
		t.Fatalf("expected balance in response: %s", rr.Body.String())
	}
}

func TestListCardsPagination(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{
		listOwnFn: func(_ context.Context, _ auth.Principal, limit, offset int) ([]services.CardView, error) {
			if limit != 10 || offset != 20 {
				t.Fatalf("unexpected pagination: limit=%d offset=%d", limit, offset)
			}
			return []services.CardView{}, nil
		},
	}, stubTransferService{})

	req := httptest.NewRequest(http.MethodGet, "/cards?page=3&limit=10", nil)
	req = requestWithPrincipal(req, userPrincipal("user-1"))
	rr := recordRequest(handler.ListCards, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
