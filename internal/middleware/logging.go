package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Recorder はリクエスト結果のメトリクス記録インターフェース。
// metrics.Collectorがこのインターフェースを満たす。nilの場合は記録しない。
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
// 最初の書き込み時にリクエストIDと処理時間をレスポンスヘッダーへ付与する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
	requestID  string
	start      time.Time
}

// WriteHeader はトレーシングヘッダーを付与し、ステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
		sr.Header().Set("X-Request-ID", sr.requestID)
		sr.Header().Set("X-Process-Time", formatProcessTime(time.Since(sr.start)))
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.WriteHeader(http.StatusOK)
	}
	return sr.ResponseWriter.Write(b)
}

// formatProcessTime は経過時間を秒単位の10進文字列へ変換する。
func formatProcessTime(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// リクエストごとにユニークなIDを生成し、開始ログ（method、path、client）と
// 完了ログ（status、duration_ms）を記録する。レスポンスヘッダーには
// X-Request-IDとX-Process-Time（秒）を付与する。
// recorderが非nilの場合はステータスコードと処理時間をメトリクスにも記録する。
func NewLoggingMiddleware(logger *slog.Logger, recorder Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			start := time.Now()

			logger.Info("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client", r.RemoteAddr),
			)

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				requestID:      requestID,
				start:          start,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "request completed",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			)

			if recorder != nil {
				recorder.RecordHTTPStatus(rec.statusCode)
				recorder.RecordRequestDuration(duration)
			}
		})
	}
}
