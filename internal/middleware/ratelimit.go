package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// レート制限のウィンドウ幅。この時間より古いリクエスト記録は破棄される。
const rateLimitWindow = 60 * time.Second

// ClientRateLimiter はクライアントアドレスごとに直近60秒間のリクエスト数を制限する。
//
// 状態はプロセスローカルであり、複数プロセス・複数インスタンス構成では
// それぞれが独立したカウンタを持つ。単一プロセスデプロイを前提とした
// 既知の制約である。分散デプロイでは外部ストアによる共有カウンタが必要になる。
type ClientRateLimiter struct {
	requestsPerMinute int

	mu           sync.Mutex
	requestTimes map[string][]time.Time

	// テストで時刻を固定するために差し替え可能にしている。
	now func() time.Time
}

// NewClientRateLimiter は1分間あたりrequestsPerMinute件まで許可するリミッターを生成する。
func NewClientRateLimiter(requestsPerMinute int) *ClientRateLimiter {
	return &ClientRateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestTimes:      make(map[string][]time.Time),
		now:               time.Now,
	}
}

// Middleware はレート制限ミドルウェアを返す。
// 閾値に達したクライアントには429とRetry-After: 60を返し、
// 次のハンドラーへは転送しない。
func (rl *ClientRateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientAddr := clientAddress(r)

			if !rl.allow(clientAddr) {
				slog.Warn("rate limit exceeded",
					slog.String("client", clientAddr),
					slog.Int("requests_per_minute", rl.requestsPerMinute),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				WriteErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow はクライアントのリクエストを許可するか判定し、許可する場合は記録する。
// 60秒より古い記録を破棄した後、残数が閾値以上なら拒否する。
func (rl *ClientRateLimiter) allow(clientAddr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rateLimitWindow)

	times := rl.requestTimes[clientAddr]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.requestsPerMinute {
		rl.requestTimes[clientAddr] = kept
		return false
	}

	rl.requestTimes[clientAddr] = append(kept, now)
	return true
}

// TrackedClientCount は現在記録されているクライアント数を返す。テスト用。
func (rl *ClientRateLimiter) TrackedClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requestTimes)
}

// clientAddress はリクエスト元のクライアントアドレスを取得する。
// RemoteAddrからポート部を除いたホスト部を使用する。
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
