package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/blogadmin/internal/model"
)

// classifyError はストレージの制約違反をmodel.ErrIntegrityViolationに変換する。
// 一意制約・外部キー制約・検査制約の違反以外はそのまま返す。
func classifyError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation, pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation:
		return fmt.Errorf("%w: %s", model.ErrIntegrityViolation, pqErr.Constraint)
	}
	return err
}

// IsIntegrityViolation はerrがストレージの制約違反かどうかを返す。
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, model.ErrIntegrityViolation)
}
