package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/blogadmin/internal/model"
)

// コメント数は保存せず、読み出しのたびに集計する
const postSelect = `SELECT p.id, p.title, p.body, p.user_id, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comments_count
	FROM posts p`

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	post := &model.Post{}
	err := row.Scan(&post.ID, &post.Title, &post.Body, &post.AuthorID,
		&post.CreatedAt, &post.UpdatedAt, &post.CommentsCount)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// FindByID は指定IDの記事をコメント数付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// List はID昇順で記事一覧をコメント数付きで返す。
func (r *PostgresPostRepo) List(ctx context.Context, page model.Page) ([]*model.Post, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		postSelect+` ORDER BY p.id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// Count は記事の総数を返す。
func (r *PostgresPostRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// Create は記事を作成する。作成直後のコメント数は0。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, body, user_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		post.Title, post.Body, post.AuthorID,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", classifyError(err))
	}
	post.CommentsCount = 0
	return nil
}

// Update は記事のタイトル、本文、著者を更新し、最新のコメント数を設定する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts p
		 SET title = $2, body = $3, user_id = $4, updated_at = GREATEST(now(), p.created_at)
		 WHERE p.id = $1
		 RETURNING p.updated_at, (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)`,
		post.ID, post.Title, post.Body, post.AuthorID,
	).Scan(&post.UpdatedAt, &post.CommentsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("post %d: %w", post.ID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update post: %w", classifyError(err))
	}
	return nil
}

// DeleteByID は指定IDの記事を削除する。関連するcommentsはCASCADE削除される。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "posts", id)
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
