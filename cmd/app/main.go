package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"asclepius-app/internal/config"
	"asclepius-app/internal/presentation/di"
	"asclepius-app/internal/presentation/http/router"
)

// AppConfig アプリケーション設定
type AppConfig struct {
	ConfigPath string
	Port       string
}

// ServerInterface サーバーインターフェース（Seam化）
type ServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// ContainerInterface DIコンテナのインターフェース（Seam化）
type ContainerInterface interface {
	router.Handlers
	EngineName() string
	Close() error
}

// newContainer DIコンテナの生成（テストで差し替え）
var newContainer = func(cfg *config.Config) (ContainerInterface, error) {
	return di.NewContainer(cfg)
}

// App アプリケーション構造体（Seamパターン）
type App struct {
	config     *AppConfig
	appConfig  *config.Config
	container  ContainerInterface
	server     *http.Server
	serverSeam ServerInterface // テスト用のSeam
}

// NewApp 新しいAppを作成
func NewApp(appCfg *AppConfig) (*App, error) {
	// ポートのデフォルト値設定
	if appCfg.Port == "" {
		appCfg.Port = "8080"
	}

	// 設定の読み込み
	cfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		log.Printf("Failed to load config: %v. Using defaults.", err)
		cfg = config.DefaultConfig()
	}

	// DIコンテナの初期化
	container, err := newContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DI container: %w", err)
	}

	// ルーターの作成
	handler := router.NewRouter(container)

	// サーバーの設定
	server := &http.Server{
		Addr:              ":" + appCfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	app := &App{
		config:    appCfg,
		appConfig: cfg,
		container: container,
		server:    server,
	}
	// デフォルトでは実際のサーバーを使用
	app.serverSeam = server

	return app, nil
}

// Start サーバーを起動
func (a *App) Start() error {
	// 起動メッセージ
	a.printStartupMessage()

	// サーバー起動（Seamを使用）
	return a.serverSeam.ListenAndServe()
}

// printStartupMessage 起動メッセージを出力
func (a *App) printStartupMessage() {
	fmt.Println("=== Asclepius Image Classification Server ===")
	fmt.Printf("Inference Engine: %s\n", a.container.EngineName())
	fmt.Printf("Model: %s\n", a.appConfig.Classifier.ModelPath)
	fmt.Printf("Server listening on http://0.0.0.0:%s\n", a.config.Port)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /                     - Main screen (画像選択)")
	fmt.Println("  POST /gallery              - Pick image from gallery")
	fmt.Println("  POST /analyze              - Analyze picked image")
	fmt.Println("  GET  /result?id=<id>       - Result screen (分類結果)")
	fmt.Println("  GET  /history              - Classification history")
	fmt.Println("  GET  /media/<id>           - Stored image")
	fmt.Println("  POST /api/v1/classify      - Classify image (multipart or image_uri)")
	fmt.Println("  GET  /api/v1/results       - Recent results")
	fmt.Println("  GET  /api/v1/results/<id>  - Result detail")
	fmt.Println("  GET  /health               - Health check")
	fmt.Println()
}

// Shutdown サーバーをシャットダウン
func (a *App) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	// サーバーのシャットダウン（Seamを使用）
	if err := a.serverSeam.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// コンテナのクローズ
	if err := a.container.Close(); err != nil {
		return fmt.Errorf("container close failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Run アプリケーションを実行（グレースフルシャットダウン付き）
func (a *App) Run() error {
	// サーバー起動（goroutine）
	serverErr := make(chan error, 1)
	go func() {
		if err := a.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// シグナルの待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
		// グレースフルシャットダウン
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return a.Shutdown(ctx)
	}
}

// configPath ASCLEPIUS_CONFIGがあればそれを、無ければ ~/.asclepius-app/config.yaml
func configPath() string {
	if p := os.Getenv("ASCLEPIUS_CONFIG"); p != "" {
		return p
	}

	// ホームディレクトリの取得
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Failed to get home directory: %v. Using current directory.", err)
		homeDir = "."
	}

	return filepath.Join(homeDir, ".asclepius-app", "config.yaml")
}

// parseLogLevel LOG_LEVELの値をslogのレベルに変換（不明ならInfo）
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger 構造化ログをJSONで標準エラーに出力
func setupLogger() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	})
	slog.SetDefault(slog.New(handler))
}

// realMain 実際のmain処理（テスト可能にするため分離）
func realMain() error {
	setupLogger()

	// ポート番号の取得
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// アプリケーション設定
	appCfg := &AppConfig{
		ConfigPath: configPath(),
		Port:       port,
	}

	// アプリケーションの作成
	app, err := NewApp(appCfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	// アプリケーションの実行
	return app.Run()
}

func main() {
	if err := realMain(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
