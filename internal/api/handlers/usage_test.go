package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/usage"
)

// memCounterStore is an in-memory CounterStore for handler tests
type memCounterStore struct {
	counts map[string]int
}

func (s *memCounterStore) key(userID string, action models.ActionType, date string) string {
	return userID + "|" + string(action) + "|" + date
}

func (s *memCounterStore) Count(ctx context.Context, userID string, action models.ActionType, date string) (int, error) {
	return s.counts[s.key(userID, action, date)], nil
}

func (s *memCounterStore) Increment(ctx context.Context, userID string, action models.ActionType, date string, ceiling limits.Limit) (int, bool, error) {
	k := s.key(userID, action, date)
	if ceiling.Reached(s.counts[k]) {
		return 0, false, nil
	}
	s.counts[k]++
	return s.counts[k], true, nil
}

// memOverrideStore returns no overrides and absorbs bootstrap inserts
type memOverrideStore struct{}

func (s *memOverrideStore) Get(ctx context.Context, userID string) (*models.CustomLimitOverride, error) {
	return nil, nil
}

func (s *memOverrideStore) Create(ctx context.Context, userID, note string) (*models.CustomLimitOverride, error) {
	return &models.CustomLimitOverride{UserID: userID, Note: note}, nil
}

// memUserDirectory serves a fixed set of users
type memUserDirectory struct {
	users map[string]*models.User
}

func (d *memUserDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func newTestUsageHandler(tier string) *UsageHandler {
	gate := usage.NewGate(&memCounterStore{counts: make(map[string]int)}, &memOverrideStore{}, nil)
	dir := &memUserDirectory{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "u1@example.com", Tier: tier},
	}}
	return NewUsageHandler(gate, dir, nil, 0)
}

func authedRequest(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	user := &models.User{ID: "u1", Email: "u1@example.com", Tier: models.TierFree}
	ctx := context.WithValue(r.Context(), auth.UserContextKey, user)
	return r.WithContext(ctx)
}

func TestUsageHandler_CheckUnauthenticated(t *testing.T) {
	h := newTestUsageHandler(models.TierFree)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/usage/check", strings.NewReader(`{"action_type":"conversion"}`))
	w := httptest.NewRecorder()
	h.Check(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", w.Code)
	}
}

func TestUsageHandler_CheckUnknownAction(t *testing.T) {
	h := newTestUsageHandler(models.TierFree)

	w := httptest.NewRecorder()
	h.Check(w, authedRequest(http.MethodPost, "/api/v1/usage/check", `{"action_type":"transcode"}`))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["error"] != "unknown_action_type" {
		t.Errorf("expected error code unknown_action_type, got %v", body["error"])
	}
}

func TestUsageHandler_CheckReportsStanding(t *testing.T) {
	h := newTestUsageHandler(models.TierFree)

	w := httptest.NewRecorder()
	h.Check(w, authedRequest(http.MethodPost, "/api/v1/usage/check", `{"action_type":"conversion"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var status usage.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if status.Limit != 3 || status.Used != 0 || status.Remaining != 3 || status.LimitReached {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestUsageHandler_IncrementTo429(t *testing.T) {
	h := newTestUsageHandler(models.TierFree)

	// Free tier conversion quota is 3.
	for i := 1; i <= 3; i++ {
		w := httptest.NewRecorder()
		h.Increment(w, authedRequest(http.MethodPost, "/api/v1/usage/increment", `{"action_type":"conversion"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("increment %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	h.Increment(w, authedRequest(http.MethodPost, "/api/v1/usage/increment", `{"action_type":"conversion"}`))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once exhausted, got %d", w.Code)
	}

	var body struct {
		Error   string       `json:"error"`
		Message string       `json:"message"`
		Usage   usage.Status `json:"usage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Error != "limit_exceeded" {
		t.Errorf("expected error code limit_exceeded, got %q", body.Error)
	}
	if body.Usage.Used != 3 || !body.Usage.LimitReached {
		t.Errorf("expected populated usage payload, got %+v", body.Usage)
	}
}

func TestUsageHandler_TierReadFromDirectoryNotToken(t *testing.T) {
	// The JWT still says free, but billing upgraded the user to enterprise.
	h := newTestUsageHandler(models.TierEnterprise)

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.Increment(w, authedRequest(http.MethodPost, "/api/v1/usage/increment", `{"action_type":"conversion"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("increment %d: expected 200 on upgraded tier, got %d", i, w.Code)
		}
	}
}

func TestUsageHandler_GetUsageSummary(t *testing.T) {
	h := newTestUsageHandler(models.TierFree)

	w := httptest.NewRecorder()
	h.Increment(w, authedRequest(http.MethodPost, "/api/v1/usage/increment", `{"action_type":"enhancement"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("increment failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.GetUsage(w, authedRequest(http.MethodGet, "/api/v1/user/usage", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Tier    string         `json:"tier"`
		Actions []usage.Status `json:"actions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Tier != models.TierFree {
		t.Errorf("expected tier free, got %q", body.Tier)
	}
	if len(body.Actions) != len(models.AllActionTypes) {
		t.Fatalf("expected %d actions, got %d", len(models.AllActionTypes), len(body.Actions))
	}
	for _, st := range body.Actions {
		want := 0
		if st.Action == models.ActionEnhancement {
			want = 1
		}
		if st.Used != want {
			t.Errorf("action %s: expected used %d, got %d", st.Action, want, st.Used)
		}
	}
}

func TestUsageHandler_TierCatalog(t *testing.T) {
	h := newTestUsageHandler(models.TierFree)

	w := httptest.NewRecorder()
	h.GetTierInfo(w, httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Tiers []struct {
			Name   string          `json:"name"`
			Limits limits.LimitSet `json:"limits"`
		} `json:"tiers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(body.Tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(body.Tiers))
	}
	if body.Tiers[0].Name != models.TierFree || body.Tiers[0].Limits.ConversionsPerDay != 3 {
		t.Errorf("unexpected first tier entry: %+v", body.Tiers[0])
	}
}
