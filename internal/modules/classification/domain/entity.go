package domain

import "time"

// MediaImage ピッカーで選択（アップロード）された画像
type MediaImage struct {
	ID          int64
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Ref メディア画像の参照
func (m *MediaImage) Ref() ImageRef {
	return MediaImageRef(m.ID)
}

// ClassificationRecord 結果画面に渡される分類結果
type ClassificationRecord struct {
	ID              string
	ImageURI        string
	DisplayResult   string
	Label           string
	Score           float32
	InferenceTimeMs int64
	CreatedAt       time.Time
}

// DisplayText 表示文字列（未設定ならデフォルトメッセージ）
func (r *ClassificationRecord) DisplayText() string {
	if r == nil || r.DisplayResult == "" {
		return MessageNoResult
	}
	return r.DisplayResult
}

// SessionState 画面の保存・復元で引き継ぐ状態
type SessionState struct {
	CurrentImageURI string `json:"currentImageUri,omitempty"`
}

// Navigation 結果画面への遷移情報
type Navigation struct {
	ResultID      string
	ImageRef      ImageRef
	DisplayResult string
	Categories    []Category
	InferenceTime time.Duration
}
