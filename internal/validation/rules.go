package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Validator は1フィールドの検証ルール。
// 失敗時はエラーメッセージを返し、成功時は空文字列を返す。
// errはストレージ問い合わせの失敗など検証自体が実行できなかった場合のみ返す。
type Validator interface {
	Validate(ctx context.Context, req *Request, field string) (string, error)
}

// Func は関数をValidatorとして扱うためのアダプタ。
type Func func(ctx context.Context, req *Request, field string) (string, error)

// Validate はValidatorインターフェースを実装する。
func (f Func) Validate(ctx context.Context, req *Request, field string) (string, error) {
	return f(ctx, req, field)
}

// 検証メッセージ
const (
	MsgRequired      = "required"
	MsgMustBeUnique  = "must be unique"
	MsgWrongPassword = "wrong password"
	MsgNotString     = "must be a string"
	MsgInvalidEmail  = "must be a valid email address"
	MsgInvalidID     = "must be an id"
	MsgNotExist      = "does not exist"
)

// ErrNoExistingRecord は編集専用のルールが既存レコードなしで実行された場合に返される。
var ErrNoExistingRecord = errors.New("validator requires an existing record")

// requiredRule は値が未入力の場合に失敗する。
type requiredRule struct{}

// Required は未入力（未指定、nil、空文字列）を拒否するルールを返す。
func Required() Validator {
	return requiredRule{}
}

func (requiredRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	if _, ok := req.ChangeSet.Value(field); !ok {
		return MsgRequired, nil
	}
	return "", nil
}

// minLengthRule は文字数が下限未満の場合に失敗する。
type minLengthRule struct {
	min int
}

// MinLength は文字数がn未満の文字列を拒否するルールを返す。
// 未入力はRequiredの責務として検証しない。文字列以外の値は拒否する。
func MinLength(n int) Validator {
	return minLengthRule{min: n}
}

func (r minLengthRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	v, ok := req.ChangeSet.Value(field)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return MsgNotString, nil
	}
	if utf8.RuneCountInString(s) < r.min {
		return fmt.Sprintf("must be at least %d characters", r.min), nil
	}
	return "", nil
}

// maxLengthRule は文字数が上限を超える場合に失敗する。
type maxLengthRule struct {
	max int
}

// MaxLength は文字数がnを超える文字列を拒否するルールを返す。
func MaxLength(n int) Validator {
	return maxLengthRule{max: n}
}

func (r maxLengthRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	v, ok := req.ChangeSet.Value(field)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return MsgNotString, nil
	}
	if utf8.RuneCountInString(s) > r.max {
		return fmt.Sprintf("must be at most %d characters", r.max), nil
	}
	return "", nil
}

// matchRule は別フィールドと値が異なる場合に失敗する。
type matchRule struct {
	other string
}

// Match はotherフィールドと値が一致しない場合に失敗するルールを返す。
// パスワード確認欄で使用する。両方とも未入力の場合は一致とみなす。
func Match(other string) Validator {
	return matchRule{other: other}
}

func (r matchRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	v, _ := req.ChangeSet.Value(field)
	o, _ := req.ChangeSet.Value(r.other)
	if !equalValues(v, o) {
		return fmt.Sprintf("does not match with '%s' field", r.other), nil
	}
	return "", nil
}

// uniqueRule は同じ値を持つレコードが存在する場合に失敗する。
type uniqueRule struct {
	excludeSelf bool
}

// UniqueOnCreate はテーブル全体で値が重複する場合に失敗するルールを返す。
func UniqueOnCreate() Validator {
	return uniqueRule{}
}

// UniqueOnEdit は編集中のレコード自身を除外して値の重複を検証するルールを返す。
// 値を変更しない編集が誤って失敗しないようにする。
func UniqueOnEdit() Validator {
	return uniqueRule{excludeSelf: true}
}

func (r uniqueRule) Validate(ctx context.Context, req *Request, field string) (string, error) {
	v, ok := req.ChangeSet.Value(field)
	if !ok {
		return "", nil
	}

	var excludeID int64
	if r.excludeSelf {
		if req.Existing == nil {
			return "", ErrNoExistingRecord
		}
		excludeID = req.Existing.RecordID()
	}

	exists, err := req.Lookup.Exists(ctx, req.Entity, field, v, excludeID)
	if err != nil {
		return "", fmt.Errorf("failed to check uniqueness of %s.%s: %w", req.Entity, field, err)
	}
	if exists {
		return MsgMustBeUnique, nil
	}
	return "", nil
}

// VerifyFunc は平文パスワードとハッシュを照合する関数。
type VerifyFunc func(plain, hash string) bool

// passwordMatchesRule は既存レコードのハッシュと照合できない場合に失敗する。
type passwordMatchesRule struct {
	verify VerifyFunc
}

// PasswordMatches は入力値が既存レコードのパスワードハッシュと一致しない場合に失敗するルールを返す。
// 編集時に現在のパスワードの再入力を求めるために使用する。
func PasswordMatches(verify VerifyFunc) Validator {
	return passwordMatchesRule{verify: verify}
}

func (r passwordMatchesRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	rec, ok := req.Existing.(PasswordRecord)
	if !ok || rec == nil {
		return "", ErrNoExistingRecord
	}
	plain, _ := req.ChangeSet.String(field)
	if !r.verify(plain, rec.PasswordHashValue()) {
		return MsgWrongPassword, nil
	}
	return "", nil
}

// emailRule はメールアドレス形式でない場合に失敗する。
type emailRule struct {
	v *validator.Validate
}

// Email はメールアドレス形式でない値を拒否するルールを返す。
func Email() Validator {
	return emailRule{v: validator.New()}
}

func (r emailRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	v, ok := req.ChangeSet.Value(field)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return MsgNotString, nil
	}
	if err := r.v.Var(s, "email"); err != nil {
		return MsgInvalidEmail, nil
	}
	return "", nil
}

// idRule は参照先IDとして解釈できない場合に失敗する。
type idRule struct{}

// ID は正の整数（JSONの数値または数字のみの文字列）でない値を拒否するルールを返す。
// 外部キー（著者、記事）の検証に使用する。
func ID() Validator {
	return idRule{}
}

func (idRule) Validate(_ context.Context, req *Request, field string) (string, error) {
	v, ok := req.ChangeSet.Value(field)
	if !ok {
		return "", nil
	}
	if _, ok := ParseID(v); !ok {
		return MsgInvalidID, nil
	}
	return "", nil
}

// referenceRule は参照先のレコードが存在しない場合に失敗する。
type referenceRule struct {
	entity string
}

// Reference は値がentityの既存レコードのIDでない場合に失敗するルールを返す。
// IDとして解釈できない値はIDルールの責務として検証しない。
func Reference(entity string) Validator {
	return referenceRule{entity: entity}
}

func (r referenceRule) Validate(ctx context.Context, req *Request, field string) (string, error) {
	v, ok := req.ChangeSet.Value(field)
	if !ok {
		return "", nil
	}
	id, ok := ParseID(v)
	if !ok {
		return "", nil
	}

	exists, err := req.Lookup.Exists(ctx, r.entity, "id", id, 0)
	if err != nil {
		return "", fmt.Errorf("failed to check reference %s.%s: %w", req.Entity, field, err)
	}
	if !exists {
		return MsgNotExist, nil
	}
	return "", nil
}

// ParseID は変更セットの値を正の整数IDとして解釈する。
func ParseID(v any) (int64, bool) {
	var id int64
	switch x := v.(type) {
	case int:
		id = int64(x)
	case int64:
		id = x
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 {
			return 0, false
		}
		id = int64(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}
