package httpapi

import (
	"context"
	"testing"
	"time"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	return NewAuthManager("test-secret-key", time.Hour, "123456", memory.NewSeeded())
}

func TestLoginIssuesToken(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken == "" || resp.Role != "admin" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "salah"}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "siapa", Password: "admin123"}); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.ParseToken("bukan.token.jwt"); err == nil {
		t.Fatalf("expected garbage token to fail")
	}

	other := NewAuthManager("another-secret-entirely", time.Hour, "123456", memory.NewSeeded())
	resp, err := other.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
}

func TestValidateManagerPIN(t *testing.T) {
	auth := newTestAuth(t)

	if !auth.ValidateManagerPIN("123456") {
		t.Fatalf("expected correct pin to validate")
	}
	if auth.ValidateManagerPIN("654321") {
		t.Fatalf("expected wrong pin to fail")
	}
	if auth.ValidateManagerPIN("") {
		t.Fatalf("expected empty pin to fail")
	}
}

func TestCreateCashierValidation(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "ab", Password: "rahasia1"}); err == nil {
		t.Fatalf("expected short username to fail")
	}
	if _, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "dewi", Password: "abc"}); err == nil {
		t.Fatalf("expected short password to fail")
	}

	cashier, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "Dewi", Password: "rahasia1"})
	if err != nil {
		t.Fatalf("create cashier failed: %v", err)
	}
	if cashier.Username != "dewi" || cashier.Role != "cashier" {
		t.Fatalf("unexpected cashier: %+v", cashier)
	}

	if _, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "dewi", Password: "rahasia2"}); err == nil {
		t.Fatalf("expected duplicate username to fail")
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "dewi", Password: "rahasia1"}); err != nil {
		t.Fatalf("expected new cashier login to work: %v", err)
	}
}

func TestListCashiersExcludesAdmin(t *testing.T) {
	auth := newTestAuth(t)

	for _, c := range auth.ListCashiers() {
		if c.Role != "cashier" {
			t.Fatalf("expected only cashiers, got %+v", c)
		}
		if c.Username == "admin" {
			t.Fatalf("admin must not appear in cashier list")
		}
	}
}

func TestManagerPINDisabledWhenUnset(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "", memory.NewSeeded())

	if auth.ValidateManagerPIN("") {
		t.Fatalf("empty pin must never validate")
	}
	// No configured PIN means no input can validate, not even a default.
	for _, guess := range []string{"disabled", "123456", "000000"} {
		if auth.ValidateManagerPIN(guess) {
			t.Fatalf("pin %q validated against an unset manager pin", guess)
		}
	}
}

func TestLoginPicksUpExternallyAddedAccount(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username:  "rina",
		Password:  "rahasia9",
		Role:      "cashier",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// The account was added after construction, so the first login has to
	// fall through the cache to the store.
	resp, err := auth.Login(domain.LoginRequest{Username: "rina", Password: "rahasia9"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "cashier" {
		t.Fatalf("expected cashier role, got %q", resp.Role)
	}
}
