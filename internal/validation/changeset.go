// Package validation は作成・編集リクエストの入力検証を提供する。
//
// フィールドごとに順序付きのValidatorリストを束ね（Bindings）、Runで一括評価する。
// Validatorは状態を変更せず、変更セット・既存レコード・読み取り専用の問い合わせのみを参照する。
package validation

import (
	"context"
	"reflect"
	"strings"
)

// Op は検証対象の操作種別。
type Op string

const (
	// OpCreate はレコード作成を表す。
	OpCreate Op = "create"
	// OpEdit は既存レコードの編集を表す。
	OpEdit Op = "edit"
)

// ChangeSet は1回の作成・編集リクエストで提案されたフィールド値。
// 永続化されず、検証とフック実行の間だけ存在する。
type ChangeSet map[string]any

// Value はフィールドの値を返す。
// 未指定、nil、空白のみの文字列は未入力として扱いfalseを返す。
func (cs ChangeSet) Value(field string) (any, bool) {
	v, ok := cs[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

// String はフィールドの値を文字列として返す。
// 未入力または文字列以外の場合はfalseを返す。
func (cs ChangeSet) String(field string) (string, bool) {
	v, ok := cs.Value(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Record は検証時に参照する既存レコード。
type Record interface {
	RecordID() int64
}

// PasswordRecord はパスワードハッシュを保持する既存レコード。
type PasswordRecord interface {
	Record
	PasswordHashValue() string
}

// Lookup は一意性検証のための読み取り専用の問い合わせインターフェース。
type Lookup interface {
	// Exists はentityのfieldがvalueと等しいレコードが存在するかを返す。
	// excludeIDが0より大きい場合はそのIDのレコードを除外する。
	Exists(ctx context.Context, entity, field string, value any, excludeID int64) (bool, error)
}

// Request は1回の検証の入力。
type Request struct {
	Entity    string
	Op        Op
	ChangeSet ChangeSet
	// Existing は編集対象の既存レコード。作成時はnil。
	Existing Record
	Lookup   Lookup
}

// equalValues はフィールド値が等しいかを判定する。
// 比較できない型（map、slice等）でもpanicしない。
func equalValues(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}
