package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/userapi/internal/database"
	"github.com/hitoshi/userapi/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// セッションごとに生成し、全クエリをそのセッション内で実行する。
type PostgresUserRepo struct {
	s database.Session
}

// NewPostgresUserRepo は指定セッションに紐付いたPostgresUserRepoを生成する。
func NewPostgresUserRepo(s database.Session) *PostgresUserRepo {
	return &PostgresUserRepo{s: s}
}

const userColumns = "id, name, email, created_at"

// GetAll は全ユーザーをcreated_atの降順で取得する。
func (r *PostgresUserRepo) GetAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.s.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// GetByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := r.s.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// GetByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.s.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// GetPaginated はcreated_atの降順でoffsetからlimit件を取得する。
func (r *PostgresUserRepo) GetPaginated(ctx context.Context, offset, limit int) ([]model.User, error) {
	rows, err := r.s.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query paginated users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// Create はユーザーを挿入し、採番された行を返す。
// ユニーク制約違反はストレージエラーのまま呼び出し元へ伝播する。
func (r *PostgresUserRepo) Create(ctx context.Context, name, email string) (*model.User, error) {
	user := &model.User{}
	err := r.s.QueryRowContext(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING `+userColumns,
		name, email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// Update は指定されたフィールドのみを更新し、更新後の行を返す。
// patchが空の場合はクエリを発行せず既存の行を返す。
// 対象行が存在しない場合はnilを返す。
func (r *PostgresUserRepo) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	query, args := buildUpdateQuery(id, patch)

	user := &model.User{}
	err := r.s.QueryRowContext(ctx, query, args...).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// Delete は指定IDの行を物理削除し、削除が行われたかどうかを返す。
func (r *PostgresUserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.s.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Count はユーザーの総数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.s.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Exists は指定IDのユーザーの存在確認を行う。
func (r *PostgresUserRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.s.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// buildUpdateQuery はpatchで指定されたフィールドのみをSET句に含むUPDATE文を構築する。
// patchは空でないことを呼び出し側が保証する。
func buildUpdateQuery(id int64, patch model.UserPatch) (string, []any) {
	set := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if patch.Name != nil {
		args = append(args, *patch.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Email != nil {
		args = append(args, *patch.Email)
		set = append(set, fmt.Sprintf("email = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(set, ", "), len(args), userColumns,
	)

	return query, args
}

// scanUsers は複数行の結果をスキャンする。
func scanUsers(rows *sql.Rows) ([]model.User, error) {
	users := []model.User{}
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
