package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogadmin/internal/admin"
	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/validation"
)

// ResourceServiceInterface はエンティティ1種類分の管理操作のインターフェース。
// レコードはレスポンス用の型に変換済みで返す。
type ResourceServiceInterface interface {
	// Name はエンティティ名（"user"など）を返す。
	Name() string
	List(ctx context.Context, page model.Page) ([]any, int, error)
	Get(ctx context.Context, id int64) (any, error)
	Create(ctx context.Context, cs validation.ChangeSet) (any, error)
	Edit(ctx context.Context, id int64, cs validation.ChangeSet) (any, error)
	Delete(ctx context.Context, id int64) error
	Fields(view admin.View) []admin.Field
}

// ResourceHandler はエンティティの一覧・詳細・作成・編集・削除を扱うHTTPハンドラー。
type ResourceHandler struct {
	service ResourceServiceInterface
}

// NewResourceHandler はResourceHandlerを生成する。
func NewResourceHandler(service ResourceServiceInterface) *ResourceHandler {
	return &ResourceHandler{service: service}
}

// listResponse は一覧取得のレスポンス。
type listResponse struct {
	Items  []any `json:"items"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// fieldsResponse は画面ごとのフィールド定義のレスポンス。
type fieldsResponse struct {
	View   admin.View    `json:"view"`
	Fields []admin.Field `json:"fields"`
}

// Routes はエンティティのルーティングを設定したchi.Routerを返す。
func (h *ResourceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/fields", h.Fields)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})
	return r
}

// List はレコードの一覧を返す。
// GET /admin/api/{resource}?limit=&offset=
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}
	page = page.Normalize()

	items, total, err := h.service.List(r.Context(), page)
	if err != nil {
		handleServiceError(w, h.service.Name(), 0, err)
		return
	}
	if items == nil {
		items = []any{}
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Get はレコードの詳細を返す。
// GET /admin/api/{resource}/{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.service.Name(), id, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create はレコードを作成する。検証に失敗した場合は422と全フィールドのエラーを返す。
// POST /admin/api/{resource}
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	cs, err := decodeChangeSet(w, r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	rec, err := h.service.Create(r.Context(), cs)
	if err != nil {
		handleServiceError(w, h.service.Name(), 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Update はレコードを編集する。
// PUT /admin/api/{resource}/{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	cs, err := decodeChangeSet(w, r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	rec, err := h.service.Edit(r.Context(), id, cs)
	if err != nil {
		handleServiceError(w, h.service.Name(), id, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete はレコードを削除する。
// DELETE /admin/api/{resource}/{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.service.Name(), id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Fields は指定画面に表示するフィールドの定義を返す。viewの既定値はlist。
// GET /admin/api/{resource}/fields?view=
func (h *ResourceHandler) Fields(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("view")
	if raw == "" {
		raw = string(admin.ViewList)
	}
	view, err := admin.ParseView(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, fieldsResponse{
		View:   view,
		Fields: h.service.Fields(view),
	})
}

func (h *ResourceHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("IDが不正です"))
		return 0, false
	}
	return id, true
}

func parsePage(r *http.Request) (model.Page, error) {
	var page model.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, errors.New("limitは整数で指定してください")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, errors.New("offsetは整数で指定してください")
		}
		page.Offset = n
	}
	return page, nil
}

// decodeChangeSet はリクエストボディのJSONオブジェクトを変更セットとして読み取る。
// 数値はjson.Numberのまま保持する。
func decodeChangeSet(w http.ResponseWriter, r *http.Request) (validation.ChangeSet, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var cs validation.ChangeSet
	if err := dec.Decode(&cs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("リクエストボディが空です")
		}
		return nil, errors.New("JSONオブジェクトの解析に失敗しました")
	}
	if cs == nil {
		return nil, errors.New("JSONオブジェクトを指定してください")
	}
	return cs, nil
}
