package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/blogadmin/internal/auth"
	"github.com/hitoshi/blogadmin/internal/middleware"
	"github.com/hitoshi/blogadmin/internal/model"
)

// --- モック定義 ---

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

// sessionResolver は"valid-session"のみを受け付けるUserResolver
type sessionResolver struct{}

func (sessionResolver) CurrentUser(_ context.Context, sessionID string) (*auth.AdminUser, error) {
	if sessionID == "valid-session" {
		return &auth.AdminUser{ID: 1, Email: "admin@example.com"}, nil
	}
	return nil, auth.ErrNotAuthenticated
}

// --- テスト用ヘルパー ---

func newTestRouter(t *testing.T, checker HealthChecker) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(600, 60))
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		HealthChecker:  checker,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "# metrics") }),
		UserResolver:   sessionResolver{},
		RateLimiter:    rl,
		CSRFConfig:     middleware.CSRFConfig{Secret: []byte("test-secret")},
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService: &mockAuthService{
			loginFn: func(_ context.Context, email, password string, _ bool) (*model.Session, error) {
				if email == "admin@example.com" && password == "secret1" {
					return &model.Session{ID: "valid-session", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}, nil
				}
				return nil, auth.ErrInvalidCredentials
			},
		},
		Resources: []ResourceServiceInterface{
			&mockResourceService{
				name: "post",
				listFn: func(context.Context, model.Page) ([]any, int, error) {
					return []any{map[string]any{"id": 1}}, 1, nil
				},
			},
		},
	})
}

// fetchCSRFCookie はトークン取得エンドポイントからCSRFトークンCookieを取得する。
func fetchCSRFCookie(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/csrf-token", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("csrf-token status = %d", w.Code)
	}
	cookie := findResponseCookie(w.Result(), "csrf_token")
	if cookie == nil {
		t.Fatal("expected csrf_token cookie")
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["token"] != cookie.Value {
		t.Errorf("token = %q, cookie = %q", body["token"], cookie.Value)
	}
	return cookie
}

// --- テスト ---

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{"DB疎通OK", &mockHealthChecker{}, http.StatusOK},
		{"DB疎通NG", &mockHealthChecker{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestRouter(t, tt.checker).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "# metrics" {
		t.Errorf("GET /metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestRouter_LoginThenListResources(t *testing.T) {
	router := newTestRouter(t, nil)
	csrf := fetchCSRFCookie(t, router)

	// ログイン
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"username":"admin@example.com","password":"secret1"}`))
	req.AddCookie(csrf)
	req.Header.Set("X-CSRF-Token", csrf.Value)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	session := findResponseCookie(w.Result(), middleware.SessionCookieName)
	if session == nil {
		t.Fatal("expected session cookie")
	}

	// 一覧取得
	req = httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	// 未定義のエンティティ
	req = httptest.NewRequest(http.MethodGet, "/admin/api/widgets", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown resource status = %d", w.Code)
	}
	if body := decodeAPIError(t, w); body.Code != model.ErrCodeUnknownResource {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnknownResource)
	}
}

func TestRouter_LoginRequiresCSRFToken(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"username":"admin@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/admin/me", "/admin/config", "/admin/api/posts", "/admin/api/widgets"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("GET %s status = %d, want 401", path, w.Code)
			}
		})
	}
}
