package router

import (
	"io/fs"
	"net/http"

	classificationHandler "asclepius-app/internal/modules/classification/presentation/handler"
	"asclepius-app/internal/presentation/http/middleware"
	"asclepius-app/web"
)

// Handlers ルーターが使用するハンドラーの提供元（DIコンテナ）
type Handlers interface {
	WebHandler() *classificationHandler.WebHandler
	APIHandler() *classificationHandler.APIHandler
	HealthHandler() http.Handler
}

// NewRouter 新しいルーターを作成
func NewRouter(handlers Handlers) http.Handler {
	mux := http.NewServeMux()

	// Web UI ハンドラー
	webHandler := handlers.WebHandler()
	mux.HandleFunc("/", webHandler.HandleMainPage)
	mux.HandleFunc("/gallery", webHandler.HandleGallery)
	mux.HandleFunc("/analyze", webHandler.HandleAnalyze)
	mux.HandleFunc("/result", webHandler.HandleResult)
	mux.HandleFunc("/history", webHandler.HandleHistory)
	mux.HandleFunc("/media/", webHandler.HandleMedia)

	// Static files
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Classification API ハンドラー
	apiHandler := handlers.APIHandler()
	mux.HandleFunc("/api/v1/classify", apiHandler.HandleClassify)
	mux.HandleFunc("/api/v1/results", apiHandler.HandleResults)
	mux.HandleFunc("/api/v1/results/", apiHandler.HandleResult)

	// Health check
	mux.Handle("/health", handlers.HealthHandler())

	// ミドルウェアの適用
	var h http.Handler = mux
	h = middleware.Recovery(h)
	h = middleware.LoggerWithHealthCheck(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(h)

	return h
}
