// Package model はドメインモデルを定義する。
package model

import "time"

// User は管理対象のユーザーを表す。
// IDとCreatedAtはストレージ層が採番・設定し、作成後は変更されない。
type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// UserPatch は部分更新で変更するフィールドを表す。
// nilのフィールドは「未指定」を意味し、既存の値が維持される。
// どのフィールドが指定されたかを明示的に保持するため、
// ゼロ値の更新と未指定の区別があいまいにならない。
type UserPatch struct {
	Name  *string
	Email *string
}

// IsEmpty は更新対象フィールドが1つも指定されていない場合にtrueを返す。
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}
