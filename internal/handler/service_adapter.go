package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/blogadmin/internal/admin"
	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/security"
	"github.com/hitoshi/blogadmin/internal/validation"
)

// ResourceServiceAdapter は admin.Service[T] を ResourceServiceInterface に適合させるアダプタ。
// レコードはpresentでレスポンス型に変換する。
type ResourceServiceAdapter[T any] struct {
	svc     *admin.Service[T]
	present func(svc *admin.Service[T], rec *T) any
	// detail は詳細取得時のみ使い、関連レコードを含むレスポンスを返す。nilの場合はpresentを使う。
	detail func(ctx context.Context, svc *admin.Service[T], rec *T) (any, error)
}

// NewResourceServiceAdapter はResourceServiceAdapterを生成する。
func NewResourceServiceAdapter[T any](svc *admin.Service[T], present func(svc *admin.Service[T], rec *T) any) *ResourceServiceAdapter[T] {
	return &ResourceServiceAdapter[T]{svc: svc, present: present}
}

// Name はエンティティ名を返す。
func (a *ResourceServiceAdapter[T]) Name() string {
	return a.svc.Name()
}

// List はレコードの一覧をレスポンス型で返す。
func (a *ResourceServiceAdapter[T]) List(ctx context.Context, page model.Page) ([]any, int, error) {
	recs, total, err := a.svc.List(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	items := make([]any, len(recs))
	for i, rec := range recs {
		items[i] = a.present(a.svc, rec)
	}
	return items, total, nil
}

// Get はレコードをレスポンス型で返す。
func (a *ResourceServiceAdapter[T]) Get(ctx context.Context, id int64) (any, error) {
	rec, err := a.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.detail != nil {
		return a.detail(ctx, a.svc, rec)
	}
	return a.present(a.svc, rec), nil
}

// Create はレコードを作成しレスポンス型で返す。
func (a *ResourceServiceAdapter[T]) Create(ctx context.Context, cs validation.ChangeSet) (any, error) {
	rec, err := a.svc.Create(ctx, cs)
	if err != nil {
		return nil, err
	}
	return a.present(a.svc, rec), nil
}

// Edit はレコードを編集しレスポンス型で返す。
func (a *ResourceServiceAdapter[T]) Edit(ctx context.Context, id int64, cs validation.ChangeSet) (any, error) {
	rec, err := a.svc.Edit(ctx, id, cs)
	if err != nil {
		return nil, err
	}
	return a.present(a.svc, rec), nil
}

// Delete はレコードを削除する。
func (a *ResourceServiceAdapter[T]) Delete(ctx context.Context, id int64) error {
	return a.svc.Delete(ctx, id)
}

// Fields は指定画面のフィールド定義を返す。
func (a *ResourceServiceAdapter[T]) Fields(view admin.View) []admin.Field {
	return a.svc.Fields(view)
}

// --- レスポンス型 ---

// userResponse はユーザーのAPIレスポンス。パスワードハッシュは含まない。
type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// postResponse は記事のAPIレスポンス。body_htmlは表示用にサニタイズした本文。
type postResponse struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	BodyHTML      string    `json:"body_html"`
	Author        int64     `json:"author"`
	CommentsCount int       `json:"comments_count"`
	Label         string    `json:"label"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// postDetailResponse は記事の詳細画面のAPIレスポンス。記事に付いたコメントを含む。
type postDetailResponse struct {
	postResponse
	Comments []relatedComment `json:"comments"`
}

// relatedComment は記事の詳細に含めるコメント。
type relatedComment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Author    int64     `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Author    int64     `json:"author"`
	Post      int64     `json:"post"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserServiceAdapter はユーザー用のアダプタを生成する。
func NewUserServiceAdapter(svc *admin.Service[model.User]) *ResourceServiceAdapter[model.User] {
	return NewResourceServiceAdapter(svc, func(svc *admin.Service[model.User], u *model.User) any {
		return userResponse{
			ID:        u.ID,
			Email:     u.Email,
			Label:     svc.Label(u),
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		}
	})
}

// CommentLister は記事に付いたコメントの一覧を返す。repository.CommentRepositoryが満たす。
type CommentLister interface {
	ListByPostID(ctx context.Context, postID int64) ([]*model.Comment, error)
}

// NewPostServiceAdapter は記事用のアダプタを生成する。
// 詳細取得ではcommentsから記事のコメント一覧を取得してレスポンスに含める。
func NewPostServiceAdapter(svc *admin.Service[model.Post], sanitizer security.BodySanitizer, comments CommentLister) *ResourceServiceAdapter[model.Post] {
	present := func(svc *admin.Service[model.Post], p *model.Post) postResponse {
		return postResponse{
			ID:            p.ID,
			Title:         p.Title,
			Body:          p.Body,
			BodyHTML:      sanitizer.Sanitize(p.Body),
			Author:        p.AuthorID,
			CommentsCount: p.CommentsCount,
			Label:         svc.Label(p),
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
	}

	adapter := NewResourceServiceAdapter(svc, func(svc *admin.Service[model.Post], p *model.Post) any {
		return present(svc, p)
	})
	adapter.detail = func(ctx context.Context, svc *admin.Service[model.Post], p *model.Post) (any, error) {
		resp := postDetailResponse{
			postResponse: present(svc, p),
			Comments:     []relatedComment{},
		}
		if comments == nil {
			return resp, nil
		}

		list, err := comments.ListByPostID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of post %d: %w", p.ID, err)
		}
		for _, c := range list {
			resp.Comments = append(resp.Comments, relatedComment{
				ID:        c.ID,
				Text:      c.Text,
				Author:    c.AuthorID,
				CreatedAt: c.CreatedAt,
			})
		}
		return resp, nil
	}
	return adapter
}

// NewCommentServiceAdapter はコメント用のアダプタを生成する。
func NewCommentServiceAdapter(svc *admin.Service[model.Comment]) *ResourceServiceAdapter[model.Comment] {
	return NewResourceServiceAdapter(svc, func(svc *admin.Service[model.Comment], c *model.Comment) any {
		return commentResponse{
			ID:        c.ID,
			Text:      c.Text,
			Author:    c.AuthorID,
			Post:      c.PostID,
			Label:     svc.Label(c),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	})
}

// compile-time interface check
var (
	_ ResourceServiceInterface = (*ResourceServiceAdapter[model.User])(nil)
	_ ResourceServiceInterface = (*ResourceServiceAdapter[model.Post])(nil)
	_ ResourceServiceInterface = (*ResourceServiceAdapter[model.Comment])(nil)
)
