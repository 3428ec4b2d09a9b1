// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/userapi/internal/database"
	"github.com/hitoshi/userapi/internal/model"
	"github.com/hitoshi/userapi/internal/repository"
)

// SessionRunner はスコープ付きセッションの実行インターフェース。
// database.Managerがこのインターフェースを満たす。
type SessionRunner interface {
	WithSession(ctx context.Context, fn func(database.Session) error) error
}

// Service はユーザー管理のサービス層。
// リポジトリの上にビジネスルール（ページネーション計算、重複メールの変換、
// 空更新の拒否）を適用する。ストレージ固有のエラーをドメインエラーへ変換する
// 唯一の境界であり、HTTP固有の型には依存しない。
type Service struct {
	sessions SessionRunner
	repoFor  repository.Factory
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sessions SessionRunner) *Service {
	return &Service{
		sessions: sessions,
		repoFor: func(s database.Session) repository.UserRepository {
			return repository.NewPostgresUserRepo(s)
		},
	}
}

// List はページネーション付きでユーザー一覧と総数を取得する。
// pageは1始まり。offset = (page-1) * perPage で計算する。
// 一覧と総数は同一セッション内で取得する。
func (s *Service) List(ctx context.Context, page, perPage int) ([]model.User, int, error) {
	offset := (page - 1) * perPage

	var users []model.User
	var total int

	err := s.sessions.WithSession(ctx, func(sess database.Session) error {
		repo := s.repoFor(sess)

		var err error
		total, err = repo.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}

		users, err = repo.GetPaginated(ctx, offset, perPage)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Get は指定IDのユーザーを取得する。見つからない場合はnilを返す（エラーではない）。
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	var user *model.User

	err := s.sessions.WithSession(ctx, func(sess database.Session) error {
		var err error
		user, err = s.repoFor(sess).GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Create は新規ユーザーを作成する。
// メールアドレスのユニーク制約違反はドメインエラー（Email already exists）へ変換する。
func (s *Service) Create(ctx context.Context, name, email string) (*model.User, error) {
	var user *model.User

	err := s.sessions.WithSession(ctx, func(sess database.Session) error {
		var err error
		user, err = s.repoFor(sess).Create(ctx, name, email)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, model.NewEmailExistsError()
		}
		return nil, err
	}

	return user, nil
}

// Update はユーザー情報を部分更新する。
// 更新フィールドが1つもない場合はリポジトリへ到達する前に拒否する。
// 対象が存在しない場合はnilを返す（エラーではない）。
// メールアドレス衝突はCreateと同様にドメインエラーへ変換する。
func (s *Service) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	if patch.IsEmpty() {
		return nil, model.NewNoFieldsToUpdateError()
	}

	var user *model.User

	err := s.sessions.WithSession(ctx, func(sess database.Session) error {
		var err error
		user, err = s.repoFor(sess).Update(ctx, id, patch)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, model.NewEmailExistsError()
		}
		return nil, err
	}

	return user, nil
}

// Delete は指定IDのユーザーを物理削除する。
// 対象が存在しない場合はfalseを返す。削除は取り消しできない。
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool

	err := s.sessions.WithSession(ctx, func(sess database.Session) error {
		var err error
		deleted, err = s.repoFor(sess).Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// TotalPages は総件数と1ページあたりの件数から総ページ数を計算する。
// totalが0の場合は0を返す。
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
