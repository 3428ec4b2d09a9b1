package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 統一エラーフォーマットで500レスポンスを返すミドルウェアを生成する。
// debugがtrueの場合はpanicの内容をレスポンスに含め、falseの場合は
// 一般的なメッセージに置き換える（詳細はログのみに記録する）。
func NewRecoveryMiddleware(debugMode bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)

					detail := "Internal server error"
					if debugMode {
						detail = fmt.Sprintf("panic: %v", rec)
					}
					WriteErrorResponse(w, http.StatusInternalServerError, detail, "INTERNAL_ERROR")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
