// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, record, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeIntegrityViolation = "INTEGRITY_VIOLATION"
	ErrCodeRecordNotFound     = "RECORD_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnknownResource    = "UNKNOWN_RESOURCE"
)

// ErrNotFound は対象レコードが存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// ErrIntegrityViolation はストレージの一意制約・外部キー制約により書き込みが拒否されたことを表す。
// アプリケーション側の検証を通過した後の競合で発生するため、特定フィールドには紐付けない。
var ErrIntegrityViolation = errors.New("integrity violation")

// ValidationError は1つ以上のフィールドが検証に失敗したことを表す。
// Fieldsはフィールド名からエラーメッセージへの対応で、失敗した全フィールドを含む。
type ValidationError struct {
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
// フィールド名順に並べるため、同じ入力に対して常に同じ文字列を返す。
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewValidationFailedError は入力検証エラーを生成する。
func NewValidationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーを確認して再送信してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザーの有無とパスワード誤りを区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "invalid credentials",
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewIntegrityViolationError は制約違反エラーを生成する。
func NewIntegrityViolationError() *APIError {
	return &APIError{
		Code:     ErrCodeIntegrityViolation,
		Message:  "他の操作と競合したため保存できませんでした。",
		Category: "record",
		Action:   "内容を確認して再度保存してください。",
	}
}

// NewRecordNotFoundError はレコード未検出エラーを生成する。
func NewRecordNotFoundError(resource string, id int64) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %d", resource, id),
		Category: "record",
		Action:   "IDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUnknownResourceError は未定義のエンティティが指定された場合のエラーを生成する。
func NewUnknownResourceError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownResource,
		Message:  fmt.Sprintf("未定義のリソースです: %s", resource),
		Category: "record",
		Action:   "URLを確認してください。",
	}
}
