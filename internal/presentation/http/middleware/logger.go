package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	healthPath   = "/health"
	staticPrefix = "/static/"
)

// responseWriter ステータスコードと書き込みバイト数を記録するラッパー
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger 全リクエストのアクセスログ
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		logRequest(r, rw, time.Since(start), levelForStatus(rw.statusCode))
	})
}

// LoggerWithHealthCheck ヘルスチェックは失敗時のみ、静的ファイルはDebugで記録する
func LoggerWithHealthCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		switch {
		case r.URL.Path == healthPath:
			if rw.statusCode != http.StatusOK {
				slog.Error("Health check failed",
					"status", rw.statusCode,
					"request_id", RequestIDFromContext(r.Context()),
				)
			}
		case strings.HasPrefix(r.URL.Path, staticPrefix) && rw.statusCode < http.StatusBadRequest:
			logRequest(r, rw, time.Since(start), slog.LevelDebug)
		default:
			logRequest(r, rw, time.Since(start), levelForStatus(rw.statusCode))
		}
	})
}

// levelForStatus 5xxはError、4xxはWarn
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func logRequest(r *http.Request, rw *responseWriter, duration time.Duration, level slog.Level) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", rw.statusCode,
		"bytes", rw.written,
		"duration", duration,
		"request_id", RequestIDFromContext(r.Context()),
	}
	// 画像アップロードのサイズ
	if r.ContentLength > 0 {
		attrs = append(attrs, "request_bytes", r.ContentLength)
	}

	slog.Log(r.Context(), level, "HTTP request", attrs...)
}
