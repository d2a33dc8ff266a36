package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/repository"
)

// UserAccounts is the slice of the user repository the account routes need.
type UserAccounts interface {
	UserDirectory
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthHandler serves registration, login, token refresh and API key
// management. New accounts always start on the free tier; Stripe webhooks
// move them up later.
type AuthHandler struct {
	users   UserAccounts
	tokens  *auth.JWTService
	apiKeys *auth.APIKeyService
}

func NewAuthHandler(users UserAccounts, tokens *auth.JWTService, apiKeys *auth.APIKeyService) *AuthHandler {
	return &AuthHandler{
		users:   users,
		tokens:  tokens,
		apiKeys: apiKeys,
	}
}

// credentialsRequest is the body of both register and login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a freshly issued token and its owner.
type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	User      *UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAPIKeyRequest names a new API key.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// APIKeyResponse is the public view of an API key. The secret part is never
// included; see CreateAPIKeyResponse.
type APIKeyResponse struct {
	ID        string     `json:"id"`
	KeyPrefix string     `json:"key_prefix"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateAPIKeyResponse carries the full key exactly once, at creation time.
type CreateAPIKeyResponse struct {
	Key     string          `json:"key"`
	KeyInfo *APIKeyResponse `json:"key_info"`
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userPayload(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Tier:      u.Tier,
		CreatedAt: u.CreatedAt,
	}
}

func apiKeyPayload(k *models.APIKey) APIKeyResponse {
	var lastUsed *time.Time
	if !k.LastUsed.IsZero() {
		lastUsed = &k.LastUsed
	}
	return APIKeyResponse{
		ID:        k.ID,
		KeyPrefix: k.KeyPrefix,
		Name:      k.Name,
		IsActive:  k.IsActive,
		LastUsed:  lastUsed,
		CreatedAt: k.CreatedAt,
	}
}

// issueSession generates a token for user and writes the auth response.
func (h *AuthHandler) issueSession(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.tokens.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to generate token")
		return
	}
	writeJSON(w, status, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.tokens.GetExpiration().Seconds()),
		User:      userPayload(user),
	})
}

// Register creates a free-tier account and logs it in.
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	email := normalizeEmail(req.Email)
	if !emailPattern.MatchString(email) {
		writeError(w, http.StatusBadRequest, "invalid_email", "Invalid email address")
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to process registration")
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Tier:         models.TierFree,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			writeError(w, http.StatusConflict, "user_exists", "An account with this email already exists")
			return
		}
		log.Printf("[auth] register failed for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to create account")
		return
	}

	h.issueSession(w, http.StatusCreated, user)
}

// Login verifies credentials and issues a token. A missing account and a
// wrong password produce the same response so the route cannot be used to
// enumerate emails.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	h.issueSession(w, http.StatusOK, user)
}

// RefreshToken exchanges a still-valid (or recently expired) token for a
// fresh one.
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header required")
		return
	}

	fresh, err := h.tokens.Refresh(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, http.StatusUnauthorized, "token_expired", "Token has expired and cannot be refreshed")
		default:
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      fresh,
		"expires_in": int64(h.tokens.GetExpiration().Seconds()),
	})
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// GetCurrentUser returns the authenticated account, read fresh from the
// database so a tier change since the token was issued is visible.
// GET /api/v1/user/me
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to fetch user data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": userPayload(user),
	})
}

// CreateAPIKey mints a new key for the account. The plaintext key appears in
// this response and nowhere else.
// POST /api/v1/user/api-keys
func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		req.Name = "API Key"
	}

	generated, err := h.apiKeys.Generate(r.Context(), claims.ID, req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrAPIKeyLimitReached) {
			writeError(w, http.StatusBadRequest, "limit_reached", "Maximum API key limit reached")
			return
		}
		log.Printf("[auth] CreateAPIKey error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to create API key")
		return
	}

	info := apiKeyPayload(generated.KeyInfo)
	writeJSON(w, http.StatusCreated, CreateAPIKeyResponse{
		Key:     generated.PlainTextKey,
		KeyInfo: &info,
	})
}

// ListAPIKeys lists the account's keys, active and revoked.
// GET /api/v1/user/api-keys
func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	keys, err := h.apiKeys.List(r.Context(), claims.ID)
	if err != nil {
		log.Printf("[auth] ListAPIKeys error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to list API keys")
		return
	}

	payload := make([]APIKeyResponse, len(keys))
	for i := range keys {
		payload[i] = apiKeyPayload(&keys[i])
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_keys": payload,
	})
}

// RevokeAPIKey deactivates one of the account's keys.
// DELETE /api/v1/user/api-keys/{keyID}
func (h *AuthHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Key ID is required")
		return
	}

	if err := h.apiKeys.Revoke(r.Context(), keyID, claims.ID); err != nil {
		if errors.Is(err, auth.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to revoke API key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "API key revoked successfully",
	})
}
