package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/repository"
)

// fakeAccounts is an in-memory UserAccounts for handler tests
type fakeAccounts struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
	nextID  int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (a *fakeAccounts) Create(ctx context.Context, user *models.User) error {
	if _, ok := a.byEmail[user.Email]; ok {
		return repository.ErrUserExists
	}
	a.nextID++
	user.ID = fmt.Sprintf("u%d", a.nextID)
	user.CreatedAt = time.Now()
	a.byID[user.ID] = user
	a.byEmail[user.Email] = user
	return nil
}

func (a *fakeAccounts) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := a.byID[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (a *fakeAccounts) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := a.byEmail[email]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func newTestAuthHandler() (*AuthHandler, *fakeAccounts) {
	accounts := newFakeAccounts()
	tokens := auth.NewJWTService("test-secret", time.Hour)
	return NewAuthHandler(accounts, tokens, nil), accounts
}

func TestAuthHandler_RegisterIssuesToken(t *testing.T) {
	h, accounts := newTestAuthHandler()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"New.User@Example.com","password":"Fj3mKx9q"}`))
	h.Register(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token in the response")
	}
	if resp.User == nil || resp.User.Email != "new.user@example.com" {
		t.Errorf("expected normalized email in response, got %+v", resp.User)
	}
	if resp.User.Tier != models.TierFree {
		t.Errorf("new accounts must start on the free tier, got %q", resp.User.Tier)
	}

	stored, err := accounts.GetByEmail(context.Background(), "new.user@example.com")
	if err != nil {
		t.Fatalf("account was not stored: %v", err)
	}
	if stored.PasswordHash == "Fj3mKx9q" {
		t.Error("password must be stored hashed")
	}
}

func TestAuthHandler_RegisterRejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed body", `{"email":`, http.StatusBadRequest, "invalid_request"},
		{"bad email", `{"email":"not-an-email","password":"Fj3mKx9q"}`, http.StatusBadRequest, "invalid_email"},
		{"weak password", `{"email":"a@example.com","password":"alllowercase1"}`, http.StatusBadRequest, "weak_password"},
		{"denied password", `{"email":"a@example.com","password":"MediaKit123"}`, http.StatusBadRequest, "weak_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestAuthHandler()
			w := httptest.NewRecorder()
			h.Register(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(tt.body)))

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid response body: %v", err)
			}
			if body["error"] != tt.wantErr {
				t.Errorf("expected error code %q, got %v", tt.wantErr, body["error"])
			}
		})
	}
}

func TestAuthHandler_RegisterDuplicateEmail(t *testing.T) {
	h, _ := newTestAuthHandler()
	body := `{"email":"dup@example.com","password":"Fj3mKx9q"}`

	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("first registration failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", w.Code)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	h, accounts := newTestAuthHandler()

	hash, err := auth.HashPassword("Fj3mKx9q")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	accounts.byID["u1"] = &models.User{ID: "u1", Email: "known@example.com", PasswordHash: hash, Tier: models.TierPro}
	accounts.byEmail["known@example.com"] = accounts.byID["u1"]

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"correct credentials", `{"email":"Known@Example.com","password":"Fj3mKx9q"}`, http.StatusOK},
		{"wrong password", `{"email":"known@example.com","password":"Fj3mKx9r"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"nobody@example.com","password":"Fj3mKx9q"}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body)))

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode == http.StatusUnauthorized {
				var body map[string]interface{}
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid response body: %v", err)
				}
				// Unknown email and wrong password must be indistinguishable.
				if body["error"] != "invalid_credentials" {
					t.Errorf("expected error code invalid_credentials, got %v", body["error"])
				}
			}
		})
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	h, _ := newTestAuthHandler()
	token, err := h.tokens.Generate(&models.User{ID: "u1", Email: "u1@example.com", Tier: models.TierFree})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "missing_token"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "invalid_token"},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.RefreshToken(w, r)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid response body: %v", err)
			}
			if tt.wantErr != "" {
				if body["error"] != tt.wantErr {
					t.Errorf("expected error code %q, got %v", tt.wantErr, body["error"])
				}
				return
			}
			if body["token"] == "" || body["token"] == nil {
				t.Error("expected a fresh token in the response")
			}
		})
	}
}

func TestAuthHandler_GetCurrentUserReadsDirectory(t *testing.T) {
	h, accounts := newTestAuthHandler()
	// The token still says free, the database says pro.
	accounts.byID["u1"] = &models.User{ID: "u1", Email: "u1@example.com", Tier: models.TierPro}

	w := httptest.NewRecorder()
	h.GetCurrentUser(w, authedRequest(http.MethodGet, "/api/v1/user/me", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		User UserResponse `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.User.Tier != models.TierPro {
		t.Errorf("expected the stored tier, got %q", body.User.Tier)
	}
}

func TestAuthHandler_Unauthenticated(t *testing.T) {
	h, _ := newTestAuthHandler()

	w := httptest.NewRecorder()
	h.GetCurrentUser(w, httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", w.Code)
	}
}
