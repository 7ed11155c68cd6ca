package inference

import (
	"fmt"
	"strings"

	"asclepius-app/internal/config"
	"asclepius-app/internal/modules/classification/domain"
)

// 設定で指定できる推論エンジン名
const (
	EngineTFLite = "tflite"
	EngineONNX   = "onnx"
)

// NewEngineFactory 設定に応じたエンジンファクトリを返す
func NewEngineFactory(cfg *config.ClassifierConfig) (domain.EngineFactory, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", EngineTFLite:
		return NewTFLiteFactory(cfg.ModelPath, cfg.LabelsPath, cfg.NumThreads), nil
	case EngineONNX:
		return NewONNXFactory(cfg.ModelPath, cfg.MetadataPath, cfg.SharedLibraryPath), nil
	default:
		return nil, fmt.Errorf("unsupported classifier engine: %s", cfg.Engine)
	}
}
