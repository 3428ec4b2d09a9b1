// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// detailにユーザー向けメッセージ、codeに機械判別用のエラーコードを持つ。
type APIError struct {
	Code   string // エラーコード（省略可）
	Detail string // エラーの詳細メッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Detail)
}

// 定義済みエラーコード
const (
	ErrCodeValueError    = "VALUE_ERROR"
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewEmailExistsError はメールアドレス重複エラーを生成する。
// ストレージ層のユニーク制約違反をサービス層で変換したもの。
func NewEmailExistsError() *APIError {
	return &APIError{
		Code:   ErrCodeValueError,
		Detail: "Email already exists",
	}
}

// NewNoFieldsToUpdateError は更新フィールド未指定エラーを生成する。
func NewNoFieldsToUpdateError() *APIError {
	return &APIError{
		Code:   ErrCodeValueError,
		Detail: "No fields to update",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID int64) *APIError {
	return &APIError{
		Code:   ErrCodeUserNotFound,
		Detail: fmt.Sprintf("User with id %d not found", userID),
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:   ErrCodeValidation,
		Detail: detail,
	}
}
