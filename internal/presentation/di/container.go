package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/uptrace/bun"

	"asclepius-app/internal/config"
	"asclepius-app/internal/modules/classification/domain"
	classificationHandler "asclepius-app/internal/modules/classification/presentation/handler"
	classificationUsecase "asclepius-app/internal/modules/classification/usecase"
	sharedCache "asclepius-app/internal/modules/shared/infrastructure/cache"
	sharedDB "asclepius-app/internal/modules/shared/infrastructure/database"
	"asclepius-app/internal/modules/shared/infrastructure/imaging"
	"asclepius-app/internal/modules/shared/infrastructure/inference"
	"asclepius-app/internal/presentation/http/handler"
)

// Container DIコンテナ
type Container struct {
	// Shared Infrastructure
	engineFactory domain.EngineFactory
	db            *bun.DB
	mediaRepo     *sharedDB.BunMediaRepository
	resultRepo    *sharedDB.BunResultRepository
	stateRepo     *sharedCache.RedisStateRepository
	decoder       *imaging.Decoder

	// Classification Module
	classifierUseCase *classificationUsecase.ClassifierUseCase
	analysisUseCase   *classificationUsecase.AnalysisUseCase
	galleryUseCase    *classificationUsecase.GalleryUseCase
	webHandler        *classificationHandler.WebHandler
	apiHandler        *classificationHandler.APIHandler

	healthHandler *handler.HealthHandler
}

// NewContainer 新しいContainerを作成
func NewContainer(cfg *config.Config) (_ *Container, err error) {
	container := &Container{}
	defer func() {
		// 途中で失敗した場合は確保済みのリソースを解放
		if err != nil {
			_ = container.Close()
		}
	}()

	// Shared Infrastructure: Inference Engine
	engineFactory, err := inference.NewEngineFactory(&cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine factory: %w", err)
	}
	container.engineFactory = engineFactory

	// Shared Infrastructure: Session State Repository
	stateRepo, err := sharedCache.NewRedisStateRepository(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state repository: %w", err)
	}
	container.stateRepo = stateRepo

	// Shared Infrastructure: Database
	db, err := sharedDB.Open(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	container.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sharedDB.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	container.mediaRepo = sharedDB.NewBunMediaRepositoryWithDB(db)
	container.resultRepo = sharedDB.NewBunResultRepositoryWithDB(db)

	// Shared Infrastructure: Image Decoder
	container.decoder = imaging.NewDecoder(container.mediaRepo, cfg.Media.Root, cfg.Media.MaxUploadBytes)

	// Classification Module: UseCase
	container.classifierUseCase = classificationUsecase.NewClassifierUseCase(
		engineFactory, container.decoder, cfg.Classifier.CacheEngine)
	container.analysisUseCase = classificationUsecase.NewAnalysisUseCase(
		container.classifierUseCase, stateRepo, container.resultRepo)
	container.galleryUseCase = classificationUsecase.NewGalleryUseCase(container.mediaRepo, cfg.Media.MaxUploadBytes)

	// Classification Module: Handler
	webHandler, err := classificationHandler.NewWebHandler(
		container.analysisUseCase, container.galleryUseCase, engineFactory.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web handler: %w", err)
	}
	container.webHandler = webHandler
	container.apiHandler = classificationHandler.NewAPIHandler(container.analysisUseCase, container.galleryUseCase)

	// Health check
	container.healthHandler = handler.NewHealthHandler(engineFactory.Name(), map[string]handler.Checker{
		"redis": stateRepo,
		"mysql": container.resultRepo,
	})

	return container, nil
}

// ClassifierUseCase 画像分類ユースケースを取得
func (c *Container) ClassifierUseCase() *classificationUsecase.ClassifierUseCase {
	return c.classifierUseCase
}

// AnalysisUseCase 解析フローのユースケースを取得
func (c *Container) AnalysisUseCase() *classificationUsecase.AnalysisUseCase {
	return c.analysisUseCase
}

// EngineName 推論エンジン名を取得
func (c *Container) EngineName() string {
	if c.engineFactory == nil {
		return ""
	}
	return c.engineFactory.Name()
}

// WebHandler Web UIハンドラーを取得
func (c *Container) WebHandler() *classificationHandler.WebHandler {
	return c.webHandler
}

// APIHandler 分類APIハンドラーを取得
func (c *Container) APIHandler() *classificationHandler.APIHandler {
	return c.apiHandler
}

// HealthHandler ヘルスチェックハンドラーを取得
func (c *Container) HealthHandler() http.Handler {
	return c.healthHandler
}

// Close リソースをクローズ
func (c *Container) Close() error {
	var errs []error

	if c.classifierUseCase != nil {
		if err := c.classifierUseCase.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close classifier: %w", err))
		}
	}

	if c.engineFactory != nil && c.engineFactory.Name() == inference.EngineONNX {
		if err := inference.DestroyEnvironment(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy onnx environment: %w", err))
		}
	}

	if c.stateRepo != nil {
		if err := c.stateRepo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close state repository: %w", err))
		}
		c.stateRepo = nil
	}

	// media/resultリポジトリは同じDBを共有している
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		c.db = nil
	}

	return errors.Join(errs...)
}
