package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardms/internal/audit"
	"cardms/internal/auth"
	"cardms/internal/models"
	"cardms/internal/store"
)

func TestRegisterInvalidPayload(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("not-json"))
	rr := recordRequest(handler.Register, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})
	body := `{"username":"alice","email":"alice@example.com","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := recordRequest(handler.Register, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRegisterBootstrapsFirstAdmin(t *testing.T) {
	var granted []auth.Capability
	auditor := &stubAuditSink{}
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{
		hasAnyAdminFn: func(context.Context) (bool, error) {
			return false, nil
		},
		grantFn: func(_ context.Context, _ store.Execer, _ string, capability auth.Capability, grantedBy *string) error {
			if grantedBy != nil {
				t.Fatalf("bootstrap grant should have no grantor")
			}
			granted = append(granted, capability)
			return nil
		},
	}, stubAuditReader{}, auditor, stubCardService{}, stubTransferService{})

	body := `{"username":"alice","email":"alice@example.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := recordRequest(handler.Register, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(granted) != 2 || granted[0] != auth.CapAdmin || granted[1] != auth.CapViewAudit {
		t.Fatalf("unexpected grants: %#v", granted)
	}
	events := auditor.recorded()
	if len(events) != 1 || events[0].Action != audit.ActionRegister {
		t.Fatalf("unexpected audit events: %#v", events)
	}
}

func TestRegisterSecondUserGetsNoCapabilities(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{}, stubCapabilityStore{
		grantFn: func(context.Context, store.Execer, string, auth.Capability, *string) error {
			t.Fatalf("no capability should be granted")
			return nil
		},
	}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})

	body := `{"username":"bob","email":"bob@example.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := recordRequest(handler.Register, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{
		getByEmailFn: func(context.Context, string) (models.User, error) {
			return models.User{ID: "user-1", PasswordHash: hash}, nil
		},
	}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})

	body := `{"email":"alice@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := recordRequest(handler.Login, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{
		getByEmailFn: func(context.Context, string) (models.User, error) {
			return models.User{}, sql.ErrNoRows
		},
	}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})

	body := `{"email":"nobody@example.com","password":"whatever"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := recordRequest(handler.Login, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLoginSuccess(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	auditor := &stubAuditSink{}
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{
		getByEmailFn: func(context.Context, string) (models.User, error) {
			return models.User{ID: "user-1", PasswordHash: hash}, nil
		},
	}, stubCapabilityStore{}, stubAuditReader{}, auditor, stubCardService{}, stubTransferService{})

	body := `{"email":"alice@example.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := recordRequest(handler.Login, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "token") {
		t.Fatalf("expected token in response: %s", rr.Body.String())
	}
	events := auditor.recorded()
	if len(events) != 1 || events[0].Action != audit.ActionLogin {
		t.Fatalf("unexpected audit events: %#v", events)
	}
}

func TestMeReturnsCapabilities(t *testing.T) {
	handler := newTestHandler(fakeTxRunner{}, stubUserStore{
		getByIDFn: func(_ context.Context, userID string) (models.User, error) {
			return models.User{ID: userID, Username: "alice", Email: "alice@example.com"}, nil
		},
	}, stubCapabilityStore{}, stubAuditReader{}, &stubAuditSink{}, stubCardService{}, stubTransferService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = requestWithPrincipal(req, adminPrincipal("user-1"))
	rr := recordRequest(handler.Me, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "admin") {
		t.Fatalf("expected capabilities in response: %s", rr.Body.String())
	}
}
