package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/blogadmin/internal/model"
)

const commentColumns = `id, text, user_id, post_id, created_at, updated_at`

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

func scanComment(row interface{ Scan(...any) error }) (*model.Comment, error) {
	c := &model.Comment{}
	err := row.Scan(&c.ID, &c.Text, &c.AuthorID, &c.PostID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}
	return c, nil
}

// List はID昇順でコメント一覧を返す。
func (r *PostgresCommentRepo) List(ctx context.Context, page model.Page) ([]*model.Comment, error) {
	page = page.Normalize()
	return r.query(ctx,
		`SELECT `+commentColumns+` FROM comments ORDER BY id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
}

// ListByPostID は指定記事のコメント一覧をID昇順で返す。
func (r *PostgresCommentRepo) ListByPostID(ctx context.Context, postID int64) ([]*model.Comment, error) {
	return r.query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY id`,
		postID,
	)
}

func (r *PostgresCommentRepo) query(ctx context.Context, query string, args ...any) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*model.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// Count はコメントの総数を返す。
func (r *PostgresCommentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}

// Create はコメントを作成する。
// 著者または記事が存在しない場合は外部キー制約違反となる。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (text, user_id, post_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.Text, c.AuthorID, c.PostID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", classifyError(err))
	}
	return nil
}

// Update はコメントの本文、著者、記事を更新する。
func (r *PostgresCommentRepo) Update(ctx context.Context, c *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE comments
		 SET text = $2, user_id = $3, post_id = $4, updated_at = GREATEST(now(), created_at)
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Text, c.AuthorID, c.PostID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("comment %d: %w", c.ID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", classifyError(err))
	}
	return nil
}

// DeleteByID は指定IDのコメントを削除する。
func (r *PostgresCommentRepo) DeleteByID(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "comments", id)
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
