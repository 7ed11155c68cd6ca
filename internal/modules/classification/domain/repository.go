package domain

import (
	"context"
	"errors"
	"image"
)

// ErrNotFound 対象のデータが存在しない
var ErrNotFound = errors.New("not found")

// Engine 推論エンジン
type Engine interface {
	// Classify 画像を分類し、出力ヘッドごとのカテゴリ群を返す
	Classify(img image.Image) ([]Classifications, error)

	// Close エンジンが保持するリソースを解放
	Close() error
}

// EngineFactory 固定設定から推論エンジンを構築
type EngineFactory interface {
	NewEngine(opts ClassifierOptions) (Engine, error)

	// Name エンジン名（tflite / onnx）
	Name() string
}

// ImageDecoder 画像参照を32bit ARGB相当のピクセルバッファにデコード
type ImageDecoder interface {
	Decode(ctx context.Context, ref ImageRef) (*image.NRGBA, error)
}

// MediaRepository 選択された画像の保存先
type MediaRepository interface {
	Create(ctx context.Context, media *MediaImage) error
	FindByID(ctx context.Context, id int64) (*MediaImage, error)
}

// ResultRepository 分類結果の保存先
type ResultRepository interface {
	Create(ctx context.Context, record *ClassificationRecord) error
	FindByID(ctx context.Context, id string) (*ClassificationRecord, error)
	FindRecent(ctx context.Context, limit int) ([]*ClassificationRecord, error)
}

// StateRepository セッション状態の保存・復元
type StateRepository interface {
	Save(ctx context.Context, sessionID string, state *SessionState) error
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Delete(ctx context.Context, sessionID string) error
}
