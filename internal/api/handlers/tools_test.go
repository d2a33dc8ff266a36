package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/usage"
)

func newTestToolsHandler(t *testing.T) *ToolsHandler {
	t.Helper()
	gate := usage.NewGate(&memCounterStore{counts: make(map[string]int)}, &memOverrideStore{}, nil)
	dir := &memUserDirectory{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "u1@example.com", Tier: models.TierFree},
	}}
	return NewToolsHandler(gate, dir, nil, nil, t.TempDir(), time.Second)
}

// multipartToolRequest builds an authenticated multipart upload. A nil
// fileBytes leaves the file part out entirely.
func multipartToolRequest(t *testing.T, path string, fields map[string]string, fileBytes []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if fileBytes != nil {
		fw, err := mw.CreateFormFile("file", "sample.mp3")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := fw.Write(fileBytes); err != nil {
			t.Fatalf("writing file part failed: %v", err)
		}
	}
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	user := &models.User{ID: "u1", Email: "u1@example.com", Tier: models.TierFree}
	return r.WithContext(context.WithValue(r.Context(), auth.UserContextKey, user))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestToolsHandler_ConvertRequiresFile(t *testing.T) {
	h := newTestToolsHandler(t)

	// No file part at all. The upload is validated before any other form
	// field, so this fails on the missing file even though format is also
	// absent.
	w := httptest.NewRecorder()
	h.Convert(w, multipartToolRequest(t, "/api/v1/tools/convert", nil, nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "invalid_request" {
		t.Errorf("expected error code invalid_request, got %q", code)
	}
}

func TestToolsHandler_ConvertRequiresFormat(t *testing.T) {
	h := newTestToolsHandler(t)

	w := httptest.NewRecorder()
	h.Convert(w, multipartToolRequest(t, "/api/v1/tools/convert", nil, []byte("not really audio")))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing format, got %d: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "invalid_request" {
		t.Errorf("expected error code invalid_request, got %q", code)
	}
}

func TestToolsHandler_ConvertEnforcesSizeCap(t *testing.T) {
	h := newTestToolsHandler(t)

	// Free tier caps uploads at 50 MB. The oversized body must be cut off
	// while the multipart form is being parsed, regardless of which other
	// form fields the request carries.
	oversized := make([]byte, 52<<20)
	w := httptest.NewRecorder()
	h.Convert(w, multipartToolRequest(t, "/api/v1/tools/convert",
		map[string]string{"format": "wav"}, oversized))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized upload, got %d: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "file_too_large" {
		t.Errorf("expected error code file_too_large, got %q", code)
	}
}

func TestToolsHandler_Unauthenticated(t *testing.T) {
	h := newTestToolsHandler(t)

	w := httptest.NewRecorder()
	h.Convert(w, httptest.NewRequest(http.MethodPost, "/api/v1/tools/convert", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", w.Code)
	}
}
