package domain

import (
	"errors"
	"time"
)

// ErrorKind 分類フローのエラー種別
type ErrorKind int

const (
	// KindSetupFailure 推論エンジンの構築に失敗
	KindSetupFailure ErrorKind = iota + 1
	// KindLoadFailure 画像のデコードに失敗
	KindLoadFailure
	// KindInferenceFailure 推論の実行に失敗
	KindInferenceFailure
	// KindEmptyResult しきい値を超えるカテゴリがない
	KindEmptyResult
	// KindNoImageSelected 画像未選択のまま解析を要求
	KindNoImageSelected
	// KindPickerCancelled ピッカーがキャンセルされた（情報通知）
	KindPickerCancelled
)

// ユーザーに表示するメッセージ
const (
	MessageSetupFailure     = "Failed to set up image classifier."
	MessageLoadFailure      = "Failed to load image."
	MessageInferenceFailure = "Failed to classify image."
	MessageEmptyResult      = "No classification results available."
	MessageNoImageSelected  = "No image available for analysis."
	MessagePickerCancelled  = "No image selected"
	MessageNoResult         = "No results available."
)

// errors.Is で比較するための番兵
var (
	ErrSetupFailure     = &ClassificationError{Kind: KindSetupFailure, Message: MessageSetupFailure}
	ErrLoadFailure      = &ClassificationError{Kind: KindLoadFailure, Message: MessageLoadFailure}
	ErrInferenceFailure = &ClassificationError{Kind: KindInferenceFailure, Message: MessageInferenceFailure}
	ErrEmptyResult      = &ClassificationError{Kind: KindEmptyResult, Message: MessageEmptyResult}
	ErrNoImageSelected  = &ClassificationError{Kind: KindNoImageSelected, Message: MessageNoImageSelected}
	ErrPickerCancelled  = &ClassificationError{Kind: KindPickerCancelled, Message: MessagePickerCancelled}
)

// ClassificationError ユーザーに短く通知するエラー
type ClassificationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ClassificationError) Error() string {
	return e.Message
}

// Is 種別が同じなら一致とみなす
func (e *ClassificationError) Is(target error) bool {
	t, ok := target.(*ClassificationError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsInformational 通知のみで異常ではないか
func (e *ClassificationError) IsInformational() bool {
	return e.Kind == KindPickerCancelled
}

// AsClassificationError errからClassificationErrorを取り出す
func AsClassificationError(err error) (*ClassificationError, bool) {
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Outcome 1回の分類呼び出しの結果。成功とエラーのどちらか一方のみを持つ
type Outcome struct {
	Categories    []Category
	InferenceTime time.Duration
	Err           *ClassificationError
}

// Success 成功結果を作成
func Success(categories []Category, inferenceTime time.Duration) Outcome {
	if categories == nil {
		categories = []Category{}
	}
	return Outcome{Categories: categories, InferenceTime: inferenceTime}
}

// Failure 失敗結果を作成
func Failure(err *ClassificationError) Outcome {
	return Outcome{Err: err}
}

// Succeeded 成功したかどうか
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// InferenceTimeMs 推論時間（ミリ秒）
func (o Outcome) InferenceTimeMs() int64 {
	return o.InferenceTime.Milliseconds()
}
