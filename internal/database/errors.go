package database

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのユニーク制約違反エラーコード。
const uniqueViolationCode = "23505"

// IsUniqueViolation はエラーがユニーク制約違反かどうかを判定する。
// リポジトリ層はストレージエラーをそのまま返し、サービス層がこの関数で
// ドメインエラーへの変換要否を判断する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
