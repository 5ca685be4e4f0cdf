// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/blogadmin/internal/auth"
	"github.com/hitoshi/blogadmin/internal/middleware"
	"github.com/hitoshi/blogadmin/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Config(user *auth.AdminUser) auth.AdminConfig
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はログイン・ログアウトと、ログイン中ユーザーの情報を扱うHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。usernameにはメールアドレスを指定する。
type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login はメールアドレスとパスワードでログインし、セッションCookieを設定する。
// POST /admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	session, err := h.service.Login(r.Context(), req.Username, req.Password, req.RememberMe)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	}
	if err != nil {
		handleServiceError(w, "", 0, err)
		return
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	http.SetCookie(w, h.sessionCookie(session.ID, maxAge))

	writeJSON(w, http.StatusOK, loginResponse{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout はセッションを破棄してCookieをクリアする。
// 未ログインでも成功として扱う。
// POST /admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.SessionIDFromRequest(r)); err != nil {
		// 失敗してもCookieはクリアする
		slog.Error("failed to logout", slog.String("error", err.Error()))
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// Me はログイン中のユーザー情報を返す。
// GET /admin/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AdminUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Config はログイン中のユーザー向けの管理画面設定を返す。
// GET /admin/config
func (h *AuthHandler) Config(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AdminUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, h.service.Config(user))
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
