// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/userapi/internal/database"
	"github.com/hitoshi/userapi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 実装は生成時に渡されたセッション内でクエリを実行し、コミット・ロールバックは
// 行わない。トランザクション境界はセッションの所有者が管理する。
type UserRepository interface {
	// GetAll は全ユーザーをcreated_atの降順で取得する。
	GetAll(ctx context.Context) ([]model.User, error)

	// GetByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// GetByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// GetPaginated はcreated_atの降順でoffsetからlimit件を取得する。
	// offset/limitの計算は呼び出し側の責務。
	GetPaginated(ctx context.Context, offset, limit int) ([]model.User, error)

	// Create はユーザーを挿入し、採番されたIDと作成日時を含む行を返す。
	// メールアドレスが衝突した場合はユニーク制約違反エラーをそのまま返す。
	Create(ctx context.Context, name, email string) (*model.User, error)

	// Update は指定されたフィールドのみを更新し、更新後の行を返す。
	// 対象行が存在しない場合はnilを返す。メールアドレス衝突時は
	// ユニーク制約違反エラーをそのまま返す。
	Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)

	// Delete は指定IDの行を物理削除し、削除が行われたかどうかを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// Count はユーザーの総数を返す。
	Count(ctx context.Context) (int, error)

	// Exists は指定IDのユーザーの存在確認を行う。
	Exists(ctx context.Context, id int64) (bool, error)
}

// Factory はセッションに紐付いたUserRepositoryを生成する。
// サービス層がセッションごとにリポジトリを組み立てるために使用する。
type Factory func(s database.Session) UserRepository
