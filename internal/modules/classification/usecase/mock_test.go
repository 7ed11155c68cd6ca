package usecase

import (
	"context"
	"errors"
	"image"
	"sync"

	"asclepius-app/internal/modules/classification/domain"
)

// MockEngine 推論エンジンのモック
type MockEngine struct {
	ClassifyFunc func(img image.Image) ([]domain.Classifications, error)
	CloseFunc    func() error

	mu            sync.Mutex
	classifyCalls int
	closeCalls    int
}

func (m *MockEngine) Classify(img image.Image) ([]domain.Classifications, error) {
	m.mu.Lock()
	m.classifyCalls++
	m.mu.Unlock()
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(img)
	}
	return []domain.Classifications{{HeadIndex: 0, Categories: []domain.Category{{Label: "benign", Score: 0.8}}}}, nil
}

func (m *MockEngine) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockEngineFactory エンジンファクトリのモック
type MockEngineFactory struct {
	NewEngineFunc func(opts domain.ClassifierOptions) (domain.Engine, error)

	mu       sync.Mutex
	calls    int
	lastOpts domain.ClassifierOptions
}

func (m *MockEngineFactory) NewEngine(opts domain.ClassifierOptions) (domain.Engine, error) {
	m.mu.Lock()
	m.calls++
	m.lastOpts = opts
	m.mu.Unlock()
	if m.NewEngineFunc != nil {
		return m.NewEngineFunc(opts)
	}
	return &MockEngine{}, nil
}

func (m *MockEngineFactory) Name() string {
	return "mock"
}

// MockImageDecoder デコーダーのモック
type MockImageDecoder struct {
	DecodeFunc func(ctx context.Context, ref domain.ImageRef) (*image.NRGBA, error)

	mu    sync.Mutex
	calls int
}

func (m *MockImageDecoder) Decode(ctx context.Context, ref domain.ImageRef) (*image.NRGBA, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.DecodeFunc != nil {
		return m.DecodeFunc(ctx, ref)
	}
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

// MockClassifier 分類処理のモック
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, ref domain.ImageRef) domain.Outcome

	calls   int
	lastRef domain.ImageRef
}

func (m *MockClassifier) Classify(ctx context.Context, ref domain.ImageRef) domain.Outcome {
	m.calls++
	m.lastRef = ref
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, ref)
	}
	return domain.Success([]domain.Category{{Label: "benign", Score: 0.5}}, 0)
}

// MockStateRepository セッション状態リポジトリのモック（メモリ上）
type MockStateRepository struct {
	SaveErr error
	LoadErr error

	states map[string]*domain.SessionState
}

func (m *MockStateRepository) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.states == nil {
		m.states = map[string]*domain.SessionState{}
	}
	copied := *state
	m.states[sessionID] = &copied
	return nil
}

func (m *MockStateRepository) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if state, ok := m.states[sessionID]; ok {
		copied := *state
		return &copied, nil
	}
	return &domain.SessionState{}, nil
}

func (m *MockStateRepository) Delete(ctx context.Context, sessionID string) error {
	delete(m.states, sessionID)
	return nil
}

// MockResultRepository 分類結果リポジトリのモック
type MockResultRepository struct {
	CreateFunc     func(ctx context.Context, record *domain.ClassificationRecord) error
	FindByIDFunc   func(ctx context.Context, id string) (*domain.ClassificationRecord, error)
	FindRecentFunc func(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error)

	created []*domain.ClassificationRecord
}

func (m *MockResultRepository) Create(ctx context.Context, record *domain.ClassificationRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	m.created = append(m.created, record)
	return nil
}

func (m *MockResultRepository) FindByID(ctx context.Context, id string) (*domain.ClassificationRecord, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	for _, r := range m.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *MockResultRepository) FindRecent(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	if m.FindRecentFunc != nil {
		return m.FindRecentFunc(ctx, limit)
	}
	return m.created, nil
}
