package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogadmin/internal/middleware"
	"github.com/hitoshi/blogadmin/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
// resourceとidはレコード未検出時のメッセージに使う。
func handleServiceError(w http.ResponseWriter, resource string, id int64, err error) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		middleware.WriteValidationErrorResponse(w, vErr.Fields)
		return
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRecordNotFoundError(resource, id))
		return
	case errors.Is(err, model.ErrIntegrityViolation):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewIntegrityViolationError())
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// 詳細はログのみに記録する
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeIntegrityViolation:
		return http.StatusConflict
	case model.ErrCodeRecordNotFound, model.ErrCodeUnknownResource:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
