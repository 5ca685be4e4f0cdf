// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogadmin/internal/auth"
	"github.com/hitoshi/blogadmin/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var adminUserContextKey = contextKey("admin_user")

// ErrNoAdminUser はコンテキストにログイン中のユーザーがない場合に返される。
var ErrNoAdminUser = errors.New("admin user not found in context")

// UserResolver はセッショントークンからログイン中のユーザーを解決するインターフェース。
// auth.Serviceが満たす。
type UserResolver interface {
	CurrentUser(ctx context.Context, sessionID string) (*auth.AdminUser, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// ログイン中のユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := resolver.CurrentUser(r.Context(), sessionID)
			if errors.Is(err, auth.ErrNotAuthenticated) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if st := requestStateFromContext(r.Context()); st != nil {
				st.userID = user.ID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAdminUser(r.Context(), user)))
		})
	}
}

// SessionIDFromRequest はCookieからセッショントークンを取得する。Cookieがなければ空文字列を返す。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AdminUserFromContext はリクエストコンテキストからログイン中のユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func AdminUserFromContext(ctx context.Context) (*auth.AdminUser, error) {
	user, ok := ctx.Value(adminUserContextKey).(*auth.AdminUser)
	if !ok || user == nil {
		return nil, ErrNoAdminUser
	}
	return user, nil
}

// ContextWithAdminUser はコンテキストにログイン中のユーザーを注入する。
func ContextWithAdminUser(ctx context.Context, user *auth.AdminUser) context.Context {
	return context.WithValue(ctx, adminUserContextKey, user)
}
