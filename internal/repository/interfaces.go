// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/blogadmin/internal/model"
)

// Store はエンティティ1種類分のCRUD操作のインターフェース。
// 管理画面のリソースハンドラはこのインターフェースのみに依存する。
type Store[T any] interface {
	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*T, error)

	// List はID昇順でレコード一覧を返す。
	List(ctx context.Context, page model.Page) ([]*T, error)

	// Count はレコードの総数を返す。
	Count(ctx context.Context) (int, error)

	// Create はレコードを作成し、採番されたIDとタイムスタンプを設定する。
	// 一意制約・外部キー制約違反はmodel.ErrIntegrityViolationでラップして返す。
	Create(ctx context.Context, record *T) error

	// Update はレコードを更新し、updated_atを設定する。
	// 対象が存在しない場合はmodel.ErrNotFoundを返す。
	Update(ctx context.Context, record *T) error

	// DeleteByID は指定IDのレコードを削除する。依存レコードはCASCADE削除される。
	// 対象が存在しない場合はmodel.ErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	Store[model.User]

	// FindByEmail はメールアドレスの完全一致でユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// PostRepository は記事データの永続化インターフェース。
// 読み出し時にはコメント数を集計してCommentsCountに設定する。
type PostRepository interface {
	Store[model.Post]
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	Store[model.Comment]

	// ListByPostID は指定記事のコメント一覧をID昇順で返す。
	ListByPostID(ctx context.Context, postID int64) ([]*model.Comment, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
