package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"asclepius-app/internal/modules/classification/domain"
)

// Classifier 分類処理のインターフェース
type Classifier interface {
	Classify(ctx context.Context, ref domain.ImageRef) domain.Outcome
}

// AnalysisUseCase 画像選択から結果画面への遷移までのユースケース
type AnalysisUseCase struct {
	classifier Classifier
	stateRepo  domain.StateRepository
	resultRepo domain.ResultRepository
}

// NewAnalysisUseCase 新しいAnalysisUseCaseを作成
func NewAnalysisUseCase(classifier Classifier, stateRepo domain.StateRepository, resultRepo domain.ResultRepository) *AnalysisUseCase {
	return &AnalysisUseCase{
		classifier: classifier,
		stateRepo:  stateRepo,
		resultRepo: resultRepo,
	}
}

// PickImage ピッカーで選ばれた画像を保持する。nilはキャンセル扱い
func (uc *AnalysisUseCase) PickImage(ctx context.Context, sessionID string, picked *domain.ImageRef) error {
	if picked == nil || picked.IsZero() {
		return domain.ErrPickerCancelled
	}

	if err := uc.SaveInstanceState(ctx, sessionID, picked); err != nil {
		return fmt.Errorf("failed to hold picked image: %w", err)
	}
	return nil
}

// CurrentImage 保持している画像参照を返す（未選択ならnil）
func (uc *AnalysisUseCase) CurrentImage(ctx context.Context, sessionID string) (*domain.ImageRef, error) {
	return uc.RestoreInstanceState(ctx, sessionID)
}

// Analyze 保持している画像を分類し、結果画面への遷移情報を返す
func (uc *AnalysisUseCase) Analyze(ctx context.Context, sessionID string) (*domain.Navigation, error) {
	ref, err := uc.RestoreInstanceState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, domain.ErrNoImageSelected
	}

	return uc.AnalyzeImage(ctx, *ref)
}

// AnalyzeImage 指定した画像を分類し、結果画面への遷移情報を返す
func (uc *AnalysisUseCase) AnalyzeImage(ctx context.Context, ref domain.ImageRef) (*domain.Navigation, error) {
	if ref.IsZero() {
		return nil, domain.ErrNoImageSelected
	}

	outcome := uc.classifier.Classify(ctx, ref)
	if !outcome.Succeeded() {
		return nil, outcome.Err
	}

	top, ok := domain.HighestCategory(outcome.Categories)
	if !ok {
		return nil, domain.ErrEmptyResult
	}

	displayResult := domain.FormatDisplayResult(top)
	resultID, err := uc.moveToResult(ctx, ref, displayResult, top, outcome)
	if err != nil {
		return nil, err
	}

	return &domain.Navigation{
		ResultID:      resultID,
		ImageRef:      ref,
		DisplayResult: displayResult,
		Categories:    outcome.Categories,
		InferenceTime: outcome.InferenceTime,
	}, nil
}

// GetResult 結果画面に表示する分類結果を取得
func (uc *AnalysisUseCase) GetResult(ctx context.Context, id string) (*domain.ClassificationRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: result id is empty", domain.ErrNotFound)
	}

	record, err := uc.resultRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return record, nil
}

// ListResults 最近の分類結果を取得
func (uc *AnalysisUseCase) ListResults(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := uc.resultRepo.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return records, nil
}

// SaveInstanceState 保持中の画像参照を文字列として保存
func (uc *AnalysisUseCase) SaveInstanceState(ctx context.Context, sessionID string, current *domain.ImageRef) error {
	state := &domain.SessionState{}
	if current != nil && !current.IsZero() {
		state.CurrentImageURI = current.String()
	}

	if err := uc.stateRepo.Save(ctx, sessionID, state); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// RestoreInstanceState 保存された文字列から画像参照を復元（未保存ならnil）
func (uc *AnalysisUseCase) RestoreInstanceState(ctx context.Context, sessionID string) (*domain.ImageRef, error) {
	state, err := uc.stateRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session state: %w", err)
	}
	if state == nil || state.CurrentImageURI == "" {
		return nil, nil
	}

	ref, err := domain.ParseImageRef(state.CurrentImageURI)
	if err != nil {
		// 壊れた状態は画像なしとして扱う
		return nil, nil
	}
	return &ref, nil
}

// moveToResult 結果画面に渡す内容を保存し、結果IDを返す
func (uc *AnalysisUseCase) moveToResult(ctx context.Context, ref domain.ImageRef, displayResult string, top domain.Category, outcome domain.Outcome) (string, error) {
	record := &domain.ClassificationRecord{
		ID:              uuid.NewString(),
		ImageURI:        ref.String(),
		DisplayResult:   displayResult,
		Label:           top.Label,
		Score:           top.Score,
		InferenceTimeMs: outcome.InferenceTimeMs(),
		CreatedAt:       time.Now(),
	}

	if err := uc.resultRepo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save classification result: %w", err)
	}
	return record.ID, nil
}
