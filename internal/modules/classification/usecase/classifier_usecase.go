package usecase

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"asclepius-app/internal/modules/classification/domain"
)

// errEngineClosed 推論中にキャッシュしたエンジンが解放された
var errEngineClosed = errors.New("classifier engine closed")

// ClassifierUseCase 画像分類のユースケース（推論エンジンの構築からOutcomeの通知まで）
type ClassifierUseCase struct {
	factory     domain.EngineFactory
	decoder     domain.ImageDecoder
	options     domain.ClassifierOptions
	cacheEngine bool

	// 計測用（テストで差し替え）
	now func() time.Time

	mu     sync.Mutex
	engine domain.Engine
}

// NewClassifierUseCase 新しいClassifierUseCaseを作成
func NewClassifierUseCase(factory domain.EngineFactory, decoder domain.ImageDecoder, cacheEngine bool) *ClassifierUseCase {
	return &ClassifierUseCase{
		factory:     factory,
		decoder:     decoder,
		options:     domain.DefaultClassifierOptions(),
		cacheEngine: cacheEngine,
		now:         time.Now,
	}
}

// Classify 画像を分類してOutcomeを返す
func (uc *ClassifierUseCase) Classify(ctx context.Context, ref domain.ImageRef) domain.Outcome {
	var outcome domain.Outcome
	uc.ClassifyStaticImage(ctx, ref, func(o domain.Outcome) {
		outcome = o
	})
	return outcome
}

// ClassifyAsync 呼び出し元とは別のgoroutineで分類し、結果を1件だけ送る
func (uc *ClassifierUseCase) ClassifyAsync(ctx context.Context, ref domain.ImageRef) <-chan domain.Outcome {
	ch := make(chan domain.Outcome, 1)
	go func() {
		defer close(ch)
		ch <- uc.Classify(ctx, ref)
	}()
	return ch
}

// ClassifyStaticImage 画像を分類し、結果をdeliverに1回だけ渡す
func (uc *ClassifierUseCase) ClassifyStaticImage(ctx context.Context, ref domain.ImageRef, deliver func(domain.Outcome)) {
	deliver(uc.classify(ctx, ref))
}

func (uc *ClassifierUseCase) classify(ctx context.Context, ref domain.ImageRef) domain.Outcome {
	engine, release, err := uc.setupEngine()
	if err != nil {
		slog.Error("Error initializing classifier",
			"engine", uc.factory.Name(),
			"error", err,
		)
		return domain.Failure(domain.ErrSetupFailure)
	}
	defer release()

	img, err := uc.decoder.Decode(ctx, ref)
	if err != nil {
		slog.Error("Error loading image",
			"image_uri", ref.String(),
			"error", err,
		)
		return domain.Failure(domain.ErrLoadFailure)
	}

	results, inferenceTime, err := uc.infer(engine, img)
	if err != nil {
		slog.Error("Error running inference",
			"engine", uc.factory.Name(),
			"image_uri", ref.String(),
			"error", err,
		)
		return domain.Failure(domain.ErrInferenceFailure)
	}

	// 出力ヘッド0のみ使用
	var categories []domain.Category
	if len(results) > 0 {
		categories = results[0].Categories
	}

	return domain.Success(categories, inferenceTime)
}

// infer 推論を実行して推論時間を計測する
func (uc *ClassifierUseCase) infer(engine domain.Engine, img image.Image) ([]domain.Classifications, time.Duration, error) {
	if uc.cacheEngine {
		// キャッシュしたエンジンは同時に1リクエストのみ使用する
		uc.mu.Lock()
		defer uc.mu.Unlock()
		if uc.engine != engine {
			return nil, 0, errEngineClosed
		}
	}

	start := uc.now()
	results, err := engine.Classify(img)
	return results, uc.now().Sub(start), err
}

// EngineName 推論エンジン名
func (uc *ClassifierUseCase) EngineName() string {
	return uc.factory.Name()
}

// Close キャッシュしている推論エンジンを解放
func (uc *ClassifierUseCase) Close() error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.engine == nil {
		return nil
	}
	err := uc.engine.Close()
	uc.engine = nil
	return err
}

// setupEngine 推論エンジンを用意する。releaseは呼び出し後に必ず実行する
func (uc *ClassifierUseCase) setupEngine() (domain.Engine, func(), error) {
	if !uc.cacheEngine {
		engine, err := uc.factory.NewEngine(uc.options)
		if err != nil {
			return nil, nil, err
		}
		return engine, func() {
			if err := engine.Close(); err != nil {
				slog.Warn("Failed to close classifier", "error", err)
			}
		}, nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.engine == nil {
		engine, err := uc.factory.NewEngine(uc.options)
		if err != nil {
			return nil, nil, err
		}
		uc.engine = engine
	}
	return uc.engine, func() {}, nil
}
