package inference

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"asclepius-app/internal/modules/classification/domain"
)

// Metadata ONNXモデルのメタデータ
type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	Layout       Layout   `json:"layout"`
	ApplySoftmax bool     `json:"apply_softmax"`
}

// LoadMetadata メタデータJSONを読み込む
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	if metadata.Layout == "" {
		metadata.Layout = LayoutNCHW
	}

	if err := metadata.validate(); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// inputDims 入力の (幅, 高さ, チャネル数)
func (m *Metadata) inputDims() (int, int, int) {
	if m.Layout == LayoutNHWC {
		return int(m.InputShape[2]), int(m.InputShape[1]), int(m.InputShape[3])
	}
	return int(m.InputShape[3]), int(m.InputShape[2]), int(m.InputShape[1])
}

func (m *Metadata) validate() error {
	if len(m.InputShape) != 4 {
		return fmt.Errorf("input_shape must have 4 dimensions, got %d", len(m.InputShape))
	}
	if len(m.OutputShape) == 0 {
		return fmt.Errorf("output_shape is required")
	}
	if m.Layout != LayoutNCHW && m.Layout != LayoutNHWC {
		return fmt.Errorf("unsupported layout: %s", m.Layout)
	}
	width, height, channels := m.inputDims()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid input size: %dx%d", width, height)
	}
	if channels != 1 && channels != 3 {
		return fmt.Errorf("unsupported input channels: %d", channels)
	}
	return nil
}

var ortInitMu sync.Mutex

// initializeEnvironment ONNX Runtime環境はプロセスで1つだけ初期化する
func initializeEnvironment(sharedLibraryPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if sharedLibraryPath != "" {
		ort.SetSharedLibraryPath(sharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// DestroyEnvironment ONNX Runtime環境を破棄
func DestroyEnvironment() error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXFactory ONNXモデルから推論エンジンを構築
type ONNXFactory struct {
	modelPath         string
	metadataPath      string
	sharedLibraryPath string
}

// NewONNXFactory 新しいONNXFactoryを作成
func NewONNXFactory(modelPath, metadataPath, sharedLibraryPath string) *ONNXFactory {
	return &ONNXFactory{
		modelPath:         modelPath,
		metadataPath:      metadataPath,
		sharedLibraryPath: sharedLibraryPath,
	}
}

// Name エンジン名
func (f *ONNXFactory) Name() string {
	return EngineONNX
}

// NewEngine セッションと入出力テンソルを準備
func (f *ONNXFactory) NewEngine(opts domain.ClassifierOptions) (domain.Engine, error) {
	if _, err := os.Stat(f.modelPath); err != nil {
		return nil, fmt.Errorf("model file not available: %w", err)
	}

	metadata, err := LoadMetadata(f.metadataPath)
	if err != nil {
		return nil, err
	}

	if err := initializeEnvironment(f.sharedLibraryPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(f.modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	width, height, channels := metadata.inputDims()
	return &ONNXEngine{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		metadata:     metadata,
		opts:         opts,
		width:        width,
		height:       height,
		channels:     channels,
	}, nil
}

// ONNXEngine ONNX Runtimeによる推論エンジン
type ONNXEngine struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	metadata     *Metadata
	opts         domain.ClassifierOptions

	width    int
	height   int
	channels int
}

// Classify 画像を分類
func (e *ONNXEngine) Classify(img image.Image) ([]domain.Classifications, error) {
	fillFloat32(e.inputTensor.GetData(), img, e.width, e.height, e.channels, e.metadata.Layout)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := append([]float32(nil), e.outputTensor.GetData()...)
	if e.metadata.ApplySoftmax {
		scores = softmax(scores)
	}

	return []domain.Classifications{{
		HeadIndex:  0,
		Categories: topCategories(scores, e.metadata.Classes, e.opts),
	}}, nil
}

// Close セッションとテンソルを解放
func (e *ONNXEngine) Close() error {
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	return nil
}
