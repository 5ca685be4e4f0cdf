package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogadmin/internal/metrics"
)

// RequestIDHeader はリクエストIDを受け渡すHTTPヘッダー。
const RequestIDHeader = "X-Request-ID"

var requestStateContextKey = contextKey("request_state")

// requestState はリクエスト処理中に後段のミドルウェアが書き込む情報。
// ロギングミドルウェアより内側で認証されたユーザーをログに含めるために使う。
type requestState struct {
	requestID string
	userID    int64
}

func requestStateFromContext(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestStateContextKey).(*requestState)
	return st
}

// RequestIDFromContext はリクエストIDを返す。ロギングミドルウェアを通過していなければ空文字列。
func RequestIDFromContext(ctx context.Context) string {
	if st := requestStateFromContext(ctx); st != nil {
		return st.requestID
	}
	return ""
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力し、
// ステータスコードとレイテンシをメトリクスに記録するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、user_id（認証済みの場合）を含む。
// リクエストIDはX-Request-IDヘッダーを引き継ぎ、なければUUIDを生成する。
func NewLoggingMiddleware(logger *slog.Logger, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			st := &requestState{requestID: requestID}
			ctx := context.WithValue(r.Context(), requestStateContextKey, st)

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(duration)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
				slog.String("request_id", requestID),
			}
			if st.userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", st.userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "http_request", attrs...)
		})
	}
}
