package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userapi/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	listFn   func(ctx context.Context, page, perPage int) ([]model.User, int, error)
	getFn    func(ctx context.Context, id int64) (*model.User, error)
	createFn func(ctx context.Context, name, email string) (*model.User, error)
	updateFn func(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	deleteFn func(ctx context.Context, id int64) (bool, error)
}

func (m *mockUserService) List(ctx context.Context, page, perPage int) ([]model.User, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, page, perPage)
	}
	return nil, 0, nil
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) Create(ctx context.Context, name, email string) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name, email)
	}
	return nil, nil
}

func (m *mockUserService) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return nil, nil
}

func (m *mockUserService) Delete(ctx context.Context, id int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false, nil
}

// withURLParam はchiのルートコンテキストにURLパラメータを注入する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeError はレスポンスボディから統一エラーフォーマットを読み取る。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// --- GET /api/v1/users テスト ---

func TestUserHandler_List_Success(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context, page, perPage int) ([]model.User, int, error) {
			return []model.User{
				{ID: 1, Name: "Taro Yamada", Email: "taro@example.com", CreatedAt: time.Now()},
				{ID: 2, Name: "Jiro Suzuki", Email: "jiro@example.com", CreatedAt: time.Now()},
			}, 42, nil
		},
	}

	h := NewUserHandler(svc, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?page=2&per_page=10", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body userListResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(body.Users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(body.Users))
	}
	if body.Total != 42 {
		t.Errorf("total = %d, want 42", body.Total)
	}
	if body.Page != 2 {
		t.Errorf("page = %d, want 2", body.Page)
	}
	if body.PerPage != 10 {
		t.Errorf("per_page = %d, want 10", body.PerPage)
	}
}

func TestUserHandler_List_DefaultPagination(t *testing.T) {
	var gotPage, gotPerPage int
	svc := &mockUserService{
		listFn: func(ctx context.Context, page, perPage int) ([]model.User, int, error) {
			gotPage = page
			gotPerPage = perPage
			return []model.User{}, 0, nil
		},
	}

	h := NewUserHandler(svc, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if gotPage != 1 {
		t.Errorf("page = %d, want default 1", gotPage)
	}
	if gotPerPage != 20 {
		t.Errorf("per_page = %d, want default 20", gotPerPage)
	}
}

func TestUserHandler_List_InvalidPage_ReturnsUnprocessableEntity(t *testing.T) {
	for _, query := range []string{"page=0", "page=-1", "page=abc"} {
		t.Run(query, func(t *testing.T) {
			h := NewUserHandler(&mockUserService{}, false)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users?"+query, nil)
			w := httptest.NewRecorder()

			h.List(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
			}
			if body := decodeError(t, w); body.Code != "VALIDATION_ERROR" {
				t.Errorf("code = %q, want VALIDATION_ERROR", body.Code)
			}
		})
	}
}

func TestUserHandler_List_PerPageOverLimit_ReturnsUnprocessableEntity(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?per_page=101", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// --- GET /api/v1/users/{id} テスト ---

func TestUserHandler_Get_Success(t *testing.T) {
	svc := &mockUserService{
		getFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Name: "Taro Yamada", Email: "taro@example.com"}, nil
		},
	}

	h := NewUserHandler(svc, false)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/users/7", nil), "id", "7")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body userResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != 7 {
		t.Errorf("id = %d, want 7", body.ID)
	}
}

func TestUserHandler_Get_NotFound(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, false)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/users/999", nil), "id", "999")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	body := decodeError(t, w)
	if body.Detail != "User with id 999 not found" {
		t.Errorf("detail = %q, want %q", body.Detail, "User with id 999 not found")
	}
	if body.Code != "USER_NOT_FOUND" {
		t.Errorf("code = %q, want USER_NOT_FOUND", body.Code)
	}
}

func TestUserHandler_Get_NonIntegerID_ReturnsUnprocessableEntity(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, false)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/users/abc", nil), "id", "abc")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// --- POST /api/v1/users テスト ---

func TestUserHandler_Create_Success(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email string) (*model.User, error) {
			return &model.User{ID: 1, Name: name, Email: email, CreatedAt: time.Now()}, nil
		},
	}

	h := NewUserHandler(svc, false)

	body := `{"name": "Taro Yamada", "email": "taro@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "Taro Yamada" {
		t.Errorf("name = %q, want %q", resp.Name, "Taro Yamada")
	}
}

func TestUserHandler_Create_TrimsName(t *testing.T) {
	var gotName string
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email string) (*model.User, error) {
			gotName = name
			return &model.User{ID: 1, Name: name, Email: email}, nil
		},
	}

	h := NewUserHandler(svc, false)

	body := `{"name": "  Taro Yamada  ", "email": "taro@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if gotName != "Taro Yamada" {
		t.Errorf("name = %q, want trimmed %q", gotName, "Taro Yamada")
	}
}

func TestUserHandler_Create_DuplicateEmail_ReturnsBadRequest(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email string) (*model.User, error) {
			return nil, model.NewEmailExistsError()
		},
	}

	h := NewUserHandler(svc, false)

	body := `{"name": "Taro Yamada", "email": "taro@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	resp := decodeError(t, w)
	if resp.Detail != "Email already exists" {
		t.Errorf("detail = %q, want %q", resp.Detail, "Email already exists")
	}
	if resp.Code != "VALUE_ERROR" {
		t.Errorf("code = %q, want VALUE_ERROR", resp.Code)
	}
}

func TestUserHandler_Create_InvalidInput_ReturnsUnprocessableEntity(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"空の名前", `{"name": "", "email": "taro@example.com"}`},
		{"空白のみの名前", `{"name": "   ", "email": "taro@example.com"}`},
		{"長すぎる名前", `{"name": "` + strings.Repeat("a", 101) + `", "email": "taro@example.com"}`},
		{"不正なメール", `{"name": "Taro Yamada", "email": "not-an-email"}`},
		{"空のメール", `{"name": "Taro Yamada", "email": ""}`},
		{"不正なJSON", `{name: taro}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewUserHandler(&mockUserService{}, false)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.Create(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
			}
		})
	}
}

func TestUserHandler_Create_InternalError_HidesDetailWithoutDebug(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	h := NewUserHandler(svc, false)

	body := `{"name": "Taro Yamada", "email": "taro@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	resp := decodeError(t, w)
	if resp.Detail != "Internal server error" {
		t.Errorf("detail = %q, want generic message", resp.Detail)
	}
}

func TestUserHandler_Create_InternalError_ExposesDetailInDebug(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, name, email string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	h := NewUserHandler(svc, true)

	body := `{"name": "Taro Yamada", "email": "taro@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := decodeError(t, w)
	if resp.Detail != "connection refused" {
		t.Errorf("detail = %q, want %q in debug mode", resp.Detail, "connection refused")
	}
}

// --- PATCH /api/v1/users/{id} テスト ---

func TestUserHandler_Update_PartialFields(t *testing.T) {
	var gotPatch model.UserPatch
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
			gotPatch = patch
			return &model.User{ID: id, Name: *patch.Name, Email: "taro@example.com"}, nil
		},
	}

	h := NewUserHandler(svc, false)

	body := `{"name": "Taro Tanaka"}`
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/v1/users/7", strings.NewReader(body)), "id", "7")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotPatch.Name == nil || *gotPatch.Name != "Taro Tanaka" {
		t.Errorf("patch.Name = %v, want Taro Tanaka", gotPatch.Name)
	}
	// 未指定フィールドはnilのまま渡ること
	if gotPatch.Email != nil {
		t.Errorf("patch.Email = %v, want nil", gotPatch.Email)
	}
}

func TestUserHandler_Update_NoFields_ReturnsBadRequest(t *testing.T) {
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
			return nil, model.NewNoFieldsToUpdateError()
		},
	}

	h := NewUserHandler(svc, false)

	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/v1/users/7", strings.NewReader(`{}`)), "id", "7")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	resp := decodeError(t, w)
	if resp.Detail != "No fields to update" {
		t.Errorf("detail = %q, want %q", resp.Detail, "No fields to update")
	}
}

func TestUserHandler_Update_NotFound(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, false)

	body := `{"name": "Taro Tanaka"}`
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/v1/users/999", strings.NewReader(body)), "id", "999")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	resp := decodeError(t, w)
	if resp.Detail != "User with id 999 not found" {
		t.Errorf("detail = %q, want %q", resp.Detail, "User with id 999 not found")
	}
}

func TestUserHandler_Update_InvalidEmail_ReturnsUnprocessableEntity(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, false)

	body := `{"email": "not-an-email"}`
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/v1/users/7", strings.NewReader(body)), "id", "7")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// --- DELETE /api/v1/users/{id} テスト ---

func TestUserHandler_Delete_Success(t *testing.T) {
	svc := &mockUserService{
		deleteFn: func(ctx context.Context, id int64) (bool, error) {
			return true, nil
		},
	}

	h := NewUserHandler(svc, false)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/users/7", nil), "id", "7")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestUserHandler_Delete_NotFound(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, false)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/users/999", nil), "id", "999")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
