package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/password"
	"github.com/hitoshi/blogadmin/internal/repository"
)

// --- モック定義 ---

type mockUserFinder struct {
	findByIDFn    func(ctx context.Context, id int64) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserFinder) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

// memorySessionRepo はテスト用のインメモリセッションストア
type memorySessionRepo struct {
	sessions map[string]*model.Session
	now      func() time.Time
	deleteFn func(ctx context.Context, id string) error
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: map[string]*model.Session{}, now: time.Now}
}

func (m *memorySessionRepo) Create(_ context.Context, session *model.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *memorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(m.now()) {
		return nil, nil
	}
	return s, nil
}

func (m *memorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *memorySessionRepo) DeleteByUserID(_ context.Context, userID int64) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// recordingMetrics はログイン結果のみを記録するメトリクスのモック
type recordingMetrics struct {
	logins []string
}

func (m *recordingMetrics) RecordLogin(result string)              { m.logins = append(m.logins, result) }
func (m *recordingMetrics) RecordValidationFailure(string, string) {}
func (m *recordingMetrics) RecordWrite(string, string)             {}
func (m *recordingMetrics) RecordIntegrityViolation(string)        {}
func (m *recordingMetrics) RecordSessionsCleaned(int64)            {}
func (m *recordingMetrics) RecordHTTPStatus(int)                   {}
func (m *recordingMetrics) RecordRequestLatency(time.Duration)     {}

var _ UserFinder = (*mockUserFinder)(nil)
var _ repository.SessionRepository = (*memorySessionRepo)(nil)

// --- テスト用ヘルパー ---

type fixture struct {
	svc      *Service
	sessions *memorySessionRepo
	users    map[int64]*model.User
	metrics  *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher := password.NewPBKDF2Hasher(1000)
	hash, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	users := map[int64]*model.User{
		1: {Base: model.Base{ID: 1}, Email: "admin@example.com", PasswordHash: hash},
	}
	finder := &mockUserFinder{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return users[id], nil
		},
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			for _, u := range users {
				if u.Email == email {
					return u, nil
				}
			}
			return nil, nil
		},
	}

	sessions := newMemorySessionRepo()
	rec := &recordingMetrics{}
	svc, err := NewService(finder, sessions, hasher, rec, ServiceConfig{
		SessionMaxAge:         3600,
		SessionRememberMaxAge: 86400,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &fixture{svc: svc, sessions: sessions, users: users, metrics: rec}
}

// --- テスト ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "admin@example.com", "secret1", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
	}
	if session.UserID != 1 {
		t.Errorf("session.UserID = %d, want 1", session.UserID)
	}
	if got := session.ExpiresAt.Sub(session.CreatedAt); got != time.Hour {
		t.Errorf("session lifetime = %v, want 1h", got)
	}

	ok, err := f.svc.IsAuthenticated(ctx, session.ID)
	if err != nil || !ok {
		t.Errorf("IsAuthenticated() = %v, %v, want true", ok, err)
	}

	user, err := f.svc.CurrentUser(ctx, session.ID)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.ID != 1 || user.Email != "admin@example.com" {
		t.Errorf("CurrentUser() = %+v", user)
	}

	if len(f.metrics.logins) != 1 || f.metrics.logins[0] != "success" {
		t.Errorf("recorded logins = %v, want [success]", f.metrics.logins)
	}
}

func TestLogin_RememberMeExtendsLifetime(t *testing.T) {
	f := newFixture(t)

	session, err := f.svc.Login(context.Background(), "admin@example.com", "secret1", true)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got := session.ExpiresAt.Sub(session.CreatedAt); got != 24*time.Hour {
		t.Errorf("session lifetime = %v, want 24h", got)
	}
}

// 未登録ユーザーとパスワード誤りは同じエラーになる
func TestLogin_UniformFailure(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"パスワード誤り", "admin@example.com", "wrong"},
		{"未登録ユーザー", "nobody@example.com", "secret1"},
		{"大文字小文字違いのメールアドレス", "ADMIN@example.com", "secret1"},
		{"空のパスワード", "admin@example.com", ""},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			session, err := f.svc.Login(context.Background(), tt.email, tt.password, false)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
			}
			if session != nil {
				t.Error("Login() should not return a session on failure")
			}
			if len(f.sessions.sessions) != 0 {
				t.Error("no session should be stored on failure")
			}
			if len(f.metrics.logins) != 1 || f.metrics.logins[0] != "failure" {
				t.Errorf("recorded logins = %v, want [failure]", f.metrics.logins)
			}
			messages = append(messages, err.Error())
		})
	}

	for _, m := range messages {
		if m != messages[0] {
			t.Errorf("failure messages differ: %q vs %q", m, messages[0])
		}
	}
}

func TestLogin_UserLookupError(t *testing.T) {
	dbErr := errors.New("connection refused")
	finder := &mockUserFinder{
		findByEmailFn: func(context.Context, string) (*model.User, error) { return nil, dbErr },
	}
	svc, err := NewService(finder, newMemorySessionRepo(), password.NewPBKDF2Hasher(1000), nil, ServiceConfig{SessionMaxAge: 60})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Login(context.Background(), "admin@example.com", "secret1", false)
	if !errors.Is(err, dbErr) {
		t.Errorf("Login() error = %v, want wrapped %v", err, dbErr)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("a store failure must not be reported as invalid credentials")
	}
}

func TestLogout_ThenNotAuthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "admin@example.com", "secret1", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := f.svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	ok, err := f.svc.IsAuthenticated(ctx, session.ID)
	if err != nil || ok {
		t.Errorf("IsAuthenticated() after logout = %v, %v, want false", ok, err)
	}

	// 2回目のログアウトもエラーにならない
	if err := f.svc.Logout(ctx, session.ID); err != nil {
		t.Errorf("second Logout() error = %v, want nil", err)
	}
	if err := f.svc.Logout(ctx, ""); err != nil {
		t.Errorf("Logout(\"\") error = %v, want nil", err)
	}
}

func TestLogout_StoreError(t *testing.T) {
	f := newFixture(t)
	dbErr := errors.New("connection refused")
	f.sessions.deleteFn = func(context.Context, string) error { return dbErr }

	if err := f.svc.Logout(context.Background(), "abc"); !errors.Is(err, dbErr) {
		t.Errorf("Logout() error = %v, want wrapped %v", err, dbErr)
	}
}

func TestCurrentUser_NotAuthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("空のトークン", func(t *testing.T) {
		if _, err := f.svc.CurrentUser(ctx, ""); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("存在しないセッション", func(t *testing.T) {
		if _, err := f.svc.CurrentUser(ctx, "unknown"); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("期限切れセッション", func(t *testing.T) {
		f.sessions.sessions["expired"] = &model.Session{ID: "expired", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}
		if _, err := f.svc.CurrentUser(ctx, "expired"); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("削除済みユーザー", func(t *testing.T) {
		session, err := f.svc.Login(ctx, "admin@example.com", "secret1", false)
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		delete(f.users, 1)

		ok, err := f.svc.IsAuthenticated(ctx, session.ID)
		if err != nil || ok {
			t.Errorf("IsAuthenticated() = %v, %v, want false", ok, err)
		}
	})
}

func TestConfig_AppTitle(t *testing.T) {
	f := newFixture(t)
	got := f.svc.Config(&AdminUser{ID: 1, Email: "admin@example.com"})
	if got.AppTitle != "Hello, admin@example.com!" {
		t.Errorf("AppTitle = %q", got.AppTitle)
	}
}

func TestGenerateSessionID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := generateSessionID()
		if err != nil {
			t.Fatalf("generateSessionID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID: %s", id)
		}
		seen[id] = true
	}
}
