// Package admin は管理画面で扱うエンティティ（ユーザー、記事、コメント）の
// 入力検証・ライフサイクルフック・永続化を束ねる。
//
// エンティティごとの違いはResourceのデータとして表現し、Serviceが共通の手順
// （検証 → 値の反映 → フック → 永続化）で処理する。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/blogadmin/internal/metrics"
	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/repository"
	"github.com/hitoshi/blogadmin/internal/validation"
)

// View は画面の種類。フィールドの表示可否を決める。
type View string

const (
	ViewList   View = "list"
	ViewCreate View = "create"
	ViewEdit   View = "edit"
	ViewDetail View = "detail"
)

// ErrUnknownView は未定義の画面種別が指定された場合に返される。
var ErrUnknownView = errors.New("unknown view")

// ParseView は文字列を画面種別に変換する。
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewList, ViewCreate, ViewEdit, ViewDetail:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Field は画面に表示するフィールドの定義。
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`

	List   bool `json:"-"`
	Create bool `json:"-"`
	Edit   bool `json:"-"`
	Detail bool `json:"-"`
}

// VisibleIn はフィールドが指定の画面に表示されるかを返す。
func (f Field) VisibleIn(v View) bool {
	switch v {
	case ViewList:
		return f.List
	case ViewCreate:
		return f.Create
	case ViewEdit:
		return f.Edit
	case ViewDetail:
		return f.Detail
	}
	return false
}

// Hook は永続化の直前に呼ばれるフック。
// 変更セットとレコードを書き換えてよい。エラーを返すと永続化は行われない。
type Hook[T any] func(ctx context.Context, cs validation.ChangeSet, rec *T) error

// Resource はエンティティ1種類分の管理画面定義。
type Resource[T any] struct {
	// Name は一意性の問い合わせやメトリクスに使うエンティティ名（"user"など）。
	Name   string
	Fields []Field

	CreateRules validation.Bindings
	EditRules   validation.Bindings

	// Apply は検証済みの変更セットの値をレコードに反映する。
	Apply func(cs validation.ChangeSet, rec *T) error

	PreCreate Hook[T]
	PreEdit   Hook[T]

	// AfterEdit は更新の永続化後に、更新前と更新後のレコードを受け取って呼ばれる。
	AfterEdit func(ctx context.Context, before, after *T) error

	// Label は一覧や選択肢に表示するレコードの表示名を返す。
	Label func(rec *T) string
}

// Service はResourceの定義に従ってレコードを操作する。
type Service[T any] struct {
	res     *Resource[T]
	store   repository.Store[T]
	lookup  validation.Lookup
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService[T any](res *Resource[T], store repository.Store[T], lookup validation.Lookup, collector metrics.MetricsCollector) *Service[T] {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service[T]{
		res:     res,
		store:   store,
		lookup:  lookup,
		metrics: collector,
	}
}

// Name はエンティティ名を返す。
func (s *Service[T]) Name() string {
	return s.res.Name
}

// Fields は指定の画面に表示するフィールドを定義順に返す。
func (s *Service[T]) Fields(view View) []Field {
	fields := make([]Field, 0, len(s.res.Fields))
	for _, f := range s.res.Fields {
		if f.VisibleIn(view) {
			fields = append(fields, f)
		}
	}
	return fields
}

// Label はレコードの表示名を返す。
func (s *Service[T]) Label(rec *T) string {
	if s.res.Label == nil || rec == nil {
		return ""
	}
	return s.res.Label(rec)
}

// List はレコードの一覧と総件数を返す。
func (s *Service[T]) List(ctx context.Context, page model.Page) ([]*T, int, error) {
	page = page.Normalize()

	items, err := s.store.List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", s.res.Name, err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", s.res.Name, err)
	}
	return items, total, nil
}

// Get はIDでレコードを取得する。存在しない場合はmodel.ErrNotFoundを返す。
func (s *Service[T]) Get(ctx context.Context, id int64) (*T, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", s.res.Name, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%s %d: %w", s.res.Name, id, model.ErrNotFound)
	}
	return rec, nil
}

// Create は変更セットを検証し、新しいレコードを作成する。
// 検証に失敗した場合は*model.ValidationErrorを返し、ストアには書き込まない。
func (s *Service[T]) Create(ctx context.Context, cs validation.ChangeSet) (*T, error) {
	if cs == nil {
		cs = validation.ChangeSet{}
	}
	if err := s.validate(ctx, validation.OpCreate, s.res.CreateRules, cs, nil); err != nil {
		return nil, err
	}

	rec := new(T)
	if err := s.res.Apply(cs, rec); err != nil {
		return nil, fmt.Errorf("failed to apply %s fields: %w", s.res.Name, err)
	}
	if s.res.PreCreate != nil {
		if err := s.res.PreCreate(ctx, cs, rec); err != nil {
			return nil, fmt.Errorf("pre-create hook for %s failed: %w", s.res.Name, err)
		}
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, s.writeError("create", err)
	}

	s.metrics.RecordWrite(s.res.Name, string(validation.OpCreate))
	slog.Info("record created",
		slog.String("entity", s.res.Name),
		slog.Int64("id", recordID(rec)),
	)
	return rec, nil
}

// Edit は既存レコードに対する変更セットを検証し、レコードを更新する。
// 対象が存在しない場合はmodel.ErrNotFoundを返す。
func (s *Service[T]) Edit(ctx context.Context, id int64, cs validation.ChangeSet) (*T, error) {
	if cs == nil {
		cs = validation.ChangeSet{}
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := *rec
	existing, _ := any(rec).(validation.Record)
	if err := s.validate(ctx, validation.OpEdit, s.res.EditRules, cs, existing); err != nil {
		return nil, err
	}

	if err := s.res.Apply(cs, rec); err != nil {
		return nil, fmt.Errorf("failed to apply %s fields: %w", s.res.Name, err)
	}
	if s.res.PreEdit != nil {
		if err := s.res.PreEdit(ctx, cs, rec); err != nil {
			return nil, fmt.Errorf("pre-edit hook for %s failed: %w", s.res.Name, err)
		}
	}

	if err := s.store.Update(ctx, rec); err != nil {
		return nil, s.writeError("edit", err)
	}
	if s.res.AfterEdit != nil {
		if err := s.res.AfterEdit(ctx, &before, rec); err != nil {
			return nil, fmt.Errorf("after-edit hook for %s failed: %w", s.res.Name, err)
		}
	}

	s.metrics.RecordWrite(s.res.Name, string(validation.OpEdit))
	slog.Info("record updated",
		slog.String("entity", s.res.Name),
		slog.Int64("id", id),
	)
	return rec, nil
}

// Delete はレコードを削除する。存在しない場合はmodel.ErrNotFoundを返す。
func (s *Service[T]) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return s.writeError("delete", err)
	}

	s.metrics.RecordWrite(s.res.Name, "delete")
	slog.Info("record deleted",
		slog.String("entity", s.res.Name),
		slog.Int64("id", id),
	)
	return nil
}

func (s *Service[T]) validate(ctx context.Context, op validation.Op, rules validation.Bindings, cs validation.ChangeSet, existing validation.Record) error {
	errs, err := validation.Run(ctx, rules, &validation.Request{
		Entity:    s.res.Name,
		Op:        op,
		ChangeSet: cs,
		Existing:  existing,
		Lookup:    s.lookup,
	})
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", s.res.Name, err)
	}
	if verr := errs.Err(); verr != nil {
		s.metrics.RecordValidationFailure(s.res.Name, string(op))
		return verr
	}
	return nil
}

func (s *Service[T]) writeError(op string, err error) error {
	if errors.Is(err, model.ErrIntegrityViolation) {
		s.metrics.RecordIntegrityViolation(s.res.Name)
		slog.Warn("write rejected by storage constraint",
			slog.String("entity", s.res.Name),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("failed to %s %s: %w", op, s.res.Name, err)
}

func recordID(rec any) int64 {
	if r, ok := rec.(validation.Record); ok {
		return r.RecordID()
	}
	return 0
}
