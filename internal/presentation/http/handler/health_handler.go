package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Version アプリケーションのバージョン
const Version = "1.0.0"

// Checker 依存先の疎通確認
type Checker interface {
	Ping(ctx context.Context) error
}

// HealthHandler ヘルスチェックのハンドラー
type HealthHandler struct {
	engine   string
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHealthHandler 新しいHealthHandlerを作成
func NewHealthHandler(engine string, checkers map[string]Checker) *HealthHandler {
	return &HealthHandler{
		engine:   engine,
		checkers: checkers,
		timeout:  2 * time.Second,
	}
}

// HealthResponse ヘルスチェックのレスポンス
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Engine  string            `json:"engine,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ServeHTTP ヘルスチェックを処理
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "ok",
		Version: Version,
		Engine:  h.engine,
	}
	statusCode := http.StatusOK

	if len(h.checkers) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		names := make([]string, 0, len(h.checkers))
		for name := range h.checkers {
			names = append(names, name)
		}
		sort.Strings(names)

		response.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := h.checkers[name].Ping(ctx); err != nil {
				response.Checks[name] = err.Error()
				response.Status = "degraded"
				statusCode = http.StatusServiceUnavailable
				continue
			}
			response.Checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
