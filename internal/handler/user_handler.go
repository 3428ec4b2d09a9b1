// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userapi/internal/model"
)

// ユーザー名の文字数制限。
const (
	nameMinLength = 1
	nameMaxLength = 100
)

// ページネーションの制約とデフォルト値。
const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List はページネーション付きでユーザー一覧と総数を取得する。
	List(ctx context.Context, page, perPage int) ([]model.User, int, error)
	// Get は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, id int64) (*model.User, error)
	// Create は新規ユーザーを作成する。
	Create(ctx context.Context, name, email string) (*model.User, error)
	// Update はユーザー情報を部分更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	// Delete はユーザーを削除し、削除が行われたかどうかを返す。
	Delete(ctx context.Context, id int64) (bool, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
// ドメインエラーをHTTPステータスコードへ変換する唯一の境界。
type UserHandler struct {
	service UserServiceInterface
	debug   bool
}

// NewUserHandler はUserHandlerを生成する。
// debugがtrueの場合、予期しないエラーの詳細をレスポンスに含める。
func NewUserHandler(service UserServiceInterface, debug bool) *UserHandler {
	return &UserHandler{
		service: service,
		debug:   debug,
	}
}

// createUserRequest はユーザー作成リクエストのボディ。
type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// updateUserRequest はユーザー更新リクエストのボディ。
// nilのフィールドは未指定として扱う。
type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// userListResponse はユーザー一覧のAPIレスポンス。ページネーション情報を含む。
type userListResponse struct {
	Users   []userResponse `json:"users"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// errorResponse は統一エラーフォーマットのレスポンス。
type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// List はユーザー一覧を取得する。
// GET /api/v1/users?page&per_page
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parseQueryInt(r, "page", defaultPage)
	if err != nil || page < 1 {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError("page must be an integer greater than or equal to 1"))
		return
	}

	perPage, err := parseQueryInt(r, "per_page", defaultPerPage)
	if err != nil || perPage < 1 || perPage > maxPerPage {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError(fmt.Sprintf("per_page must be an integer between 1 and %d", maxPerPage)))
		return
	}

	users, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := userListResponse{
		Users:   make([]userResponse, len(users)),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	for i, u := range users {
		resp.Users[i] = toUserResponse(&u)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get は特定のユーザーを取得する。
// GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Create は新規ユーザーを作成する。
// POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError("Invalid request body"))
		return
	}

	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := validateEmail(req.Email); err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, err)
		return
	}

	user, err := h.service.Create(r.Context(), name, req.Email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Update はユーザー情報を部分更新する。
// PATCH /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError("Invalid request body"))
		return
	}

	patch := model.UserPatch{Email: req.Email}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			writeAPIErrorResponse(w, http.StatusUnprocessableEntity, err)
			return
		}
		patch.Name = &name
	}
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			writeAPIErrorResponse(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	user, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Delete はユーザーを削除する。
// DELETE /api/v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if !deleted {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseUserID はURLパラメータからユーザーIDを取得する。
// 整数でない場合は422を書き込み、falseを返す。
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError("id must be an integer"))
		return 0, false
	}
	return id, true
}

// parseQueryInt はクエリパラメータを整数として取得する。未指定の場合はデフォルト値を返す。
func parseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(raw)
}

// validateName はユーザー名を検証する。空白トリム後の文字数が1〜100であること。
func validateName(name string) *model.APIError {
	length := len([]rune(name))
	if length < nameMinLength || length > nameMaxLength {
		return model.NewValidationError(
			fmt.Sprintf("name must be between %d and %d characters", nameMinLength, nameMaxLength))
	}
	return nil
}

// validateEmail はメールアドレスの構文を検証する。
func validateEmail(email string) *model.APIError {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("email must be a valid email address")
	}
	return nil
}

// toUserResponse はドメインのUserをレスポンス型に変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, errorResponse{
		Detail: apiErr.Detail,
		Code:   apiErr.Code,
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスへ変換する。
// ドメインエラー（*model.APIError）はコードに応じたステータスへマッピングし、
// それ以外は500として扱う。本番環境では詳細メッセージを隠す。
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))

	detail := "Internal server error"
	if h.debug {
		detail = err.Error()
	}
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:   model.ErrCodeInternalError,
		Detail: detail,
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValueError:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
