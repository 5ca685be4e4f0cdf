package validation

import (
	"context"
	"fmt"

	"github.com/hitoshi/blogadmin/internal/model"
)

// Binding はフィールドと、そのフィールドに適用する順序付きのルール。
type Binding struct {
	Field string
	Rules []Validator
}

// Bindings はエンティティ・操作ごとのルール定義。宣言順に評価される。
type Bindings []Binding

// Bind はBindingを生成する。
func Bind(field string, rules ...Validator) Binding {
	return Binding{Field: field, Rules: rules}
}

// Fields はバインドされたフィールド名を宣言順に返す。
func (b Bindings) Fields() []string {
	fields := make([]string, 0, len(b))
	for _, binding := range b {
		fields = append(fields, binding.Field)
	}
	return fields
}

// Errors はフィールド名から最初に失敗したルールのメッセージへの対応。
type Errors map[string]string

// Err は検証エラーがあれば*model.ValidationErrorを返し、なければnilを返す。
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	fields := make(map[string]string, len(e))
	for k, v := range e {
		fields[k] = v
	}
	return &model.ValidationError{Fields: fields}
}

// Run はすべてのバインディングを評価し、失敗したフィールドのメッセージを返す。
//
// 各フィールドでは宣言順にルールを評価し、最初に失敗したルールで打ち切る。
// あるフィールドの失敗は他のフィールドの評価を妨げない。
// 返されるerrはルール自体が実行できなかった場合のみで、その場合の結果は不定。
func Run(ctx context.Context, bindings Bindings, req *Request) (Errors, error) {
	if req.ChangeSet == nil {
		local := *req
		local.ChangeSet = ChangeSet{}
		req = &local
	}

	errs := Errors{}
	for _, binding := range bindings {
		for _, rule := range binding.Rules {
			msg, err := rule.Validate(ctx, req, binding.Field)
			if err != nil {
				return nil, fmt.Errorf("failed to validate %s.%s: %w", req.Entity, binding.Field, err)
			}
			if msg != "" {
				errs[binding.Field] = msg
				break
			}
		}
	}
	return errs, nil
}
