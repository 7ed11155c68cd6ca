package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// apiPrefix JSONでエラーを返すパス
const apiPrefix = "/api/"

// ErrorResponse APIのエラーレスポンス
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Recovery パニックを500に変換する。APIはJSON、画面はテキストで返す
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			requestID := RequestIDFromContext(r.Context())
			slog.Error("Panic recovered",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID,
				"stack", string(debug.Stack()),
			)

			if !strings.HasPrefix(r.URL.Path, apiPrefix) {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				Success:   false,
				Error:     "Internal server error",
				RequestID: requestID,
			})
		}()

		next.ServeHTTP(w, r)
	})
}
