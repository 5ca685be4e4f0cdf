// Package auth は管理画面のログイン認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogadmin/internal/metrics"
	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/password"
	"github.com/hitoshi/blogadmin/internal/repository"
)

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っている場合に返される。
	// どちらが誤っていたかは区別しない。
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated はセッションが存在しない、期限切れ、またはユーザーが削除済みの場合に返される。
	ErrNotAuthenticated = errors.New("not authenticated")
)

// UserFinder はログインとセッション解決に必要なユーザー検索のインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// AdminUser は画面表示に必要な最小限のユーザー情報。パスワードハッシュは含まない。
type AdminUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// AdminConfig はログイン中のユーザー向けの管理画面設定。
type AdminConfig struct {
	AppTitle string `json:"app_title"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge         int // セッション有効期間（秒）
	SessionRememberMaxAge int // remember_me指定時のセッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       UserFinder
	sessionRepo repository.SessionRepository
	hasher      password.Hasher
	metrics     metrics.MetricsCollector
	config      ServiceConfig

	// 未登録ユーザーのログインでも照合処理を行い、応答時間を揃えるためのハッシュ
	dummyHash string
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users UserFinder,
	sessionRepo repository.SessionRepository,
	hasher password.Hasher,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) (*Service, error) {
	dummyHash, err := hasher.Hash("blogadmin-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		users:       users,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		metrics:     collector,
		config:      config,
		dummyHash:   dummyHash,
		now:         time.Now,
	}, nil
}

// Login はメールアドレスとパスワードを照合し、成功した場合はセッションを発行する。
// ユーザーが存在しない場合とパスワードが誤っている場合は同じErrInvalidCredentialsを返す。
// rememberMeがtrueの場合は長期間有効なセッションを発行する。
func (s *Service) Login(ctx context.Context, email, plain string, rememberMe bool) (*model.Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	ok := s.hasher.Verify(plain, hash)
	if user == nil || !ok {
		s.metrics.RecordLogin(metrics.LoginFailure)
		slog.Info("login failed")
		return nil, ErrInvalidCredentials
	}

	maxAge := s.config.SessionMaxAge
	if rememberMe && s.config.SessionRememberMaxAge > 0 {
		maxAge = s.config.SessionRememberMaxAge
	}

	session, err := s.createSession(ctx, user.ID, maxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.Bool("remember_me", rememberMe),
	)
	return session, nil
}

// Logout はセッションを破棄する。
// 空のトークンや存在しないセッションに対してもエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// IsAuthenticated はセッションが有効なユーザーに紐付いているかを返す。
func (s *Service) IsAuthenticated(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.CurrentUser(ctx, sessionID)
	if errors.Is(err, ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
// 認証されていない場合はErrNotAuthenticatedを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*AdminUser, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrNotAuthenticated
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	return &AdminUser{ID: user.ID, Email: user.Email}, nil
}

// Config はログイン中のユーザー向けの管理画面設定を返す。
func (s *Service) Config(user *AdminUser) AdminConfig {
	return AdminConfig{AppTitle: fmt.Sprintf("Hello, %s!", user.Email)}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID int64, maxAge int) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(maxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
