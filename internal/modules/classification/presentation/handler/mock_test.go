package handler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"asclepius-app/internal/modules/classification/domain"
	"asclepius-app/internal/modules/classification/usecase"
)

// MockAnalysisUseCase 解析ユースケースのモック
type MockAnalysisUseCase struct {
	PickImageFunc    func(ctx context.Context, sessionID string, picked *domain.ImageRef) error
	CurrentImageFunc func(ctx context.Context, sessionID string) (*domain.ImageRef, error)
	AnalyzeFunc      func(ctx context.Context, sessionID string) (*domain.Navigation, error)
	AnalyzeImageFunc func(ctx context.Context, ref domain.ImageRef) (*domain.Navigation, error)
	GetResultFunc    func(ctx context.Context, id string) (*domain.ClassificationRecord, error)
	ListResultsFunc  func(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error)
}

func (m *MockAnalysisUseCase) PickImage(ctx context.Context, sessionID string, picked *domain.ImageRef) error {
	if m.PickImageFunc != nil {
		return m.PickImageFunc(ctx, sessionID, picked)
	}
	if picked == nil {
		return domain.ErrPickerCancelled
	}
	return nil
}

func (m *MockAnalysisUseCase) CurrentImage(ctx context.Context, sessionID string) (*domain.ImageRef, error) {
	if m.CurrentImageFunc != nil {
		return m.CurrentImageFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockAnalysisUseCase) Analyze(ctx context.Context, sessionID string) (*domain.Navigation, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, sessionID)
	}
	return nil, domain.ErrNoImageSelected
}

func (m *MockAnalysisUseCase) AnalyzeImage(ctx context.Context, ref domain.ImageRef) (*domain.Navigation, error) {
	if m.AnalyzeImageFunc != nil {
		return m.AnalyzeImageFunc(ctx, ref)
	}
	return nil, errors.New("not implemented")
}

func (m *MockAnalysisUseCase) GetResult(ctx context.Context, id string) (*domain.ClassificationRecord, error) {
	if m.GetResultFunc != nil {
		return m.GetResultFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockAnalysisUseCase) ListResults(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	if m.ListResultsFunc != nil {
		return m.ListResultsFunc(ctx, limit)
	}
	return nil, nil
}

// MockGalleryUseCase 画像ピッカーのモック
type MockGalleryUseCase struct {
	PickFunc func(ctx context.Context, upload *usecase.Upload) (*domain.ImageRef, error)
	OpenFunc func(ctx context.Context, id int64) (*domain.MediaImage, error)
}

func (m *MockGalleryUseCase) Pick(ctx context.Context, upload *usecase.Upload) (*domain.ImageRef, error) {
	if m.PickFunc != nil {
		return m.PickFunc(ctx, upload)
	}
	if upload == nil {
		return nil, nil
	}
	ref := domain.MediaImageRef(1)
	return &ref, nil
}

func (m *MockGalleryUseCase) Open(ctx context.Context, id int64) (*domain.MediaImage, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// newMultipartRequest image フィールド付きのリクエストを作成（dataがnilならフィールド無し）
func newMultipartRequest(t *testing.T, target string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if data != nil {
		part, err := writer.CreateFormFile("image", "mole.png")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
