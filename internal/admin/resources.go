package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/password"
	"github.com/hitoshi/blogadmin/internal/validation"
)

// エンティティ名
const (
	EntityUser    = "user"
	EntityPost    = "post"
	EntityComment = "comment"
)

// DefaultPasswordMinLength はパスワードの最小文字数の既定値。
const DefaultPasswordMinLength = 6

// 平文パスワードを受け取る変更セットのキー。フック実行後に削除される。
var plaintextPasswordKeys = []string{"password", "new_password", "password_confirmation"}

func idField() Field {
	return Field{Name: "id", Label: "ID", Type: "integer", List: true, Detail: true}
}

func timestampFields() []Field {
	return []Field{
		{Name: "created_at", Label: "Created At", Type: "datetime", List: true, Detail: true},
		{Name: "updated_at", Label: "Updated At", Type: "datetime", List: true, Detail: true},
	}
}

// SessionRevoker はユーザーの全セッションを失効させる。repository.SessionRepositoryが満たす。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID int64) error
}

// NewUserResource はユーザーの管理画面定義を返す。
// 作成時はpasswordを、編集時はnew_passwordが入力された場合のみハッシュ化して保存する。
// パスワードが変更された場合はsessionsでそのユーザーの既存セッションを失効させる。
func NewUserResource(hasher password.Hasher, minLength int, sessions SessionRevoker) *Resource[model.User] {
	if minLength <= 0 {
		minLength = DefaultPasswordMinLength
	}

	fields := []Field{
		idField(),
		{Name: "email", Label: "Email", Type: "email", List: true, Create: true, Edit: true, Detail: true},
		{Name: "password", Label: "Password", Type: "password", Create: true, Edit: true},
		{Name: "new_password", Label: "New Password", Type: "password", Edit: true},
		{Name: "password_confirmation", Label: "Password Confirmation", Type: "password", Create: true, Edit: true},
	}

	return &Resource[model.User]{
		Name:   EntityUser,
		Fields: append(fields, timestampFields()...),
		CreateRules: validation.Bindings{
			validation.Bind("email", validation.Required(), validation.Email(), validation.UniqueOnCreate()),
			validation.Bind("password", validation.Required(), validation.MinLength(minLength)),
			validation.Bind("password_confirmation", validation.Required(), validation.Match("password")),
		},
		EditRules: validation.Bindings{
			validation.Bind("email", validation.Required(), validation.Email(), validation.UniqueOnEdit()),
			validation.Bind("password", validation.Required(), validation.PasswordMatches(hasher.Verify)),
			validation.Bind("new_password", validation.MinLength(minLength)),
			validation.Bind("password_confirmation", validation.Match("new_password")),
		},
		Apply: func(cs validation.ChangeSet, u *model.User) error {
			if email, ok := cs.String("email"); ok {
				u.Email = email
			}
			return nil
		},
		PreCreate: func(_ context.Context, cs validation.ChangeSet, u *model.User) error {
			plain, _ := cs.String("password")
			hash, err := hasher.Hash(plain)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			u.PasswordHash = hash
			dropPlaintext(cs)
			return nil
		},
		PreEdit: func(_ context.Context, cs validation.ChangeSet, u *model.User) error {
			if plain, ok := cs.String("new_password"); ok {
				hash, err := hasher.Hash(plain)
				if err != nil {
					return fmt.Errorf("failed to hash password: %w", err)
				}
				u.PasswordHash = hash
			}
			dropPlaintext(cs)
			return nil
		},
		AfterEdit: func(ctx context.Context, before, after *model.User) error {
			if sessions == nil || before.PasswordHash == after.PasswordHash {
				return nil
			}
			if err := sessions.DeleteByUserID(ctx, after.ID); err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
			slog.Info("sessions revoked after password change",
				slog.Int64("user_id", after.ID),
			)
			return nil
		},
		Label: func(u *model.User) string { return u.Email },
	}
}

func dropPlaintext(cs validation.ChangeSet) {
	for _, key := range plaintextPasswordKeys {
		delete(cs, key)
	}
}

// NewPostResource は記事の管理画面定義を返す。
func NewPostResource() *Resource[model.Post] {
	fields := []Field{
		idField(),
		{Name: "title", Label: "Title", Type: "string", List: true, Create: true, Edit: true, Detail: true},
		{Name: "body", Label: "Body", Type: "html", List: true, Create: true, Edit: true, Detail: true},
		{Name: "author", Label: "Author", Type: "user", List: true, Create: true, Edit: true, Detail: true},
		{Name: "comments", Label: "Comments", Type: "comments", Detail: true},
		{Name: "comments_count", Label: "Comments Count", Type: "integer", List: true, Detail: true},
	}

	return &Resource[model.Post]{
		Name:   EntityPost,
		Fields: append(fields, timestampFields()...),
		CreateRules: validation.Bindings{
			validation.Bind("title", validation.Required(), validation.MaxLength(model.PostTitleMaxLength), validation.UniqueOnCreate()),
			validation.Bind("body", validation.Required()),
			validation.Bind("author", validation.Required(), validation.ID(), validation.Reference(EntityUser)),
		},
		EditRules: validation.Bindings{
			validation.Bind("title", validation.Required(), validation.MaxLength(model.PostTitleMaxLength), validation.UniqueOnEdit()),
			validation.Bind("body", validation.Required()),
			validation.Bind("author", validation.Required(), validation.ID(), validation.Reference(EntityUser)),
		},
		Apply: func(cs validation.ChangeSet, p *model.Post) error {
			if title, ok := cs.String("title"); ok {
				p.Title = title
			}
			if body, ok := cs.String("body"); ok {
				p.Body = body
			}
			if v, ok := cs.Value("author"); ok {
				id, ok := validation.ParseID(v)
				if !ok {
					return fmt.Errorf("invalid author id: %v", v)
				}
				p.AuthorID = id
			}
			return nil
		},
		PreCreate: noopHook[model.Post],
		PreEdit:   noopHook[model.Post],
		Label:     func(p *model.Post) string { return p.Title },
	}
}

// NewCommentResource はコメントの管理画面定義を返す。
func NewCommentResource() *Resource[model.Comment] {
	fields := []Field{
		idField(),
		{Name: "text", Label: "Text", Type: "text", List: true, Create: true, Edit: true, Detail: true},
		{Name: "author", Label: "Author", Type: "user", List: true, Create: true, Edit: true, Detail: true},
		{Name: "post", Label: "Post", Type: "post", List: true, Create: true, Edit: true, Detail: true},
	}

	rules := validation.Bindings{
		validation.Bind("text", validation.Required()),
		validation.Bind("author", validation.Required(), validation.ID(), validation.Reference(EntityUser)),
		validation.Bind("post", validation.Required(), validation.ID(), validation.Reference(EntityPost)),
	}

	return &Resource[model.Comment]{
		Name:        EntityComment,
		Fields:      append(fields, timestampFields()...),
		CreateRules: rules,
		EditRules:   rules,
		Apply: func(cs validation.ChangeSet, c *model.Comment) error {
			if text, ok := cs.String("text"); ok {
				c.Text = text
			}
			for key, dst := range map[string]*int64{"author": &c.AuthorID, "post": &c.PostID} {
				v, ok := cs.Value(key)
				if !ok {
					continue
				}
				id, ok := validation.ParseID(v)
				if !ok {
					return fmt.Errorf("invalid %s id: %v", key, v)
				}
				*dst = id
			}
			return nil
		},
		PreCreate: noopHook[model.Comment],
		PreEdit:   noopHook[model.Comment],
		Label:     func(c *model.Comment) string { return c.Text },
	}
}

func noopHook[T any](context.Context, validation.ChangeSet, *T) error {
	return nil
}
