package handler

import (
	"context"

	"asclepius-app/internal/modules/classification/domain"
	"asclepius-app/internal/modules/classification/usecase"
)

// AnalysisUseCaseInterface は解析フローのユースケースのインターフェース
type AnalysisUseCaseInterface interface {
	PickImage(ctx context.Context, sessionID string, picked *domain.ImageRef) error
	CurrentImage(ctx context.Context, sessionID string) (*domain.ImageRef, error)
	Analyze(ctx context.Context, sessionID string) (*domain.Navigation, error)
	AnalyzeImage(ctx context.Context, ref domain.ImageRef) (*domain.Navigation, error)
	GetResult(ctx context.Context, id string) (*domain.ClassificationRecord, error)
	ListResults(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error)
}

// GalleryUseCaseInterface は画像ピッカーのユースケースのインターフェース
type GalleryUseCaseInterface interface {
	Pick(ctx context.Context, upload *usecase.Upload) (*domain.ImageRef, error)
	Open(ctx context.Context, id int64) (*domain.MediaImage, error)
}
