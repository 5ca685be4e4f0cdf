package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/blogadmin/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestWriteErrorResponse_UnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusConflict, model.NewIntegrityViolationError())

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
	if _, ok := raw["errors"]; ok {
		t.Error("errors must be omitted for non-validation errors")
	}
	if raw["code"] != model.ErrCodeIntegrityViolation {
		t.Errorf("code = %v", raw["code"])
	}
}

func TestWriteValidationErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationErrorResponse(w, map[string]string{
		"email":    "must be unique",
		"password": "required",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q", body.Code)
	}
	if body.Errors["email"] != "must be unique" || body.Errors["password"] != "required" {
		t.Errorf("errors = %v", body.Errors)
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != "INTERNAL_ERROR" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}
