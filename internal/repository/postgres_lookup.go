package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogadmin/internal/validation"
)

// lookupColumns は一意性検証と参照先の存在確認で問い合わせ可能な
// (エンティティ, フィールド) と (テーブル, カラム) の対応。
// SQLに埋め込む識別子はこの表にあるものだけに限定する。
var lookupColumns = map[string]map[string][2]string{
	"user": {"id": {"users", "id"}, "email": {"users", "email"}},
	"post": {"id": {"posts", "id"}, "title": {"posts", "title"}},
}

// UnknownLookupFieldError は一意性検証の対象外のフィールドが指定された場合に返される。
type UnknownLookupFieldError struct {
	Entity string
	Field  string
}

func (e *UnknownLookupFieldError) Error() string {
	return fmt.Sprintf("no lookup registered for %s.%s", e.Entity, e.Field)
}

// PostgresLookup はPostgreSQLを使用した一意性検証用の問い合わせ。
type PostgresLookup struct {
	db *sql.DB
}

// NewPostgresLookup はPostgresLookupを生成する。
func NewPostgresLookup(db *sql.DB) *PostgresLookup {
	return &PostgresLookup{db: db}
}

// Exists はentityのfieldがvalueと等しいレコードが存在するかを返す。
// excludeIDが0より大きい場合はそのIDのレコードを除外する。
func (l *PostgresLookup) Exists(ctx context.Context, entity, field string, value any, excludeID int64) (bool, error) {
	target, ok := lookupColumns[entity][field]
	if !ok {
		return false, &UnknownLookupFieldError{Entity: entity, Field: field}
	}

	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+target[0]+` WHERE `+target[1]+` = $1 AND id <> $2)`,
		value, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s.%s: %w", entity, field, err)
	}
	return exists, nil
}

// compile-time interface check
var _ validation.Lookup = (*PostgresLookup)(nil)
