package inference

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/mattn/go-tflite"

	"asclepius-app/internal/modules/classification/domain"
)

// TFLiteFactory TFLiteモデルから推論エンジンを構築
type TFLiteFactory struct {
	modelPath  string
	labelsPath string
	numThreads int
}

// NewTFLiteFactory 新しいTFLiteFactoryを作成
func NewTFLiteFactory(modelPath, labelsPath string, numThreads int) *TFLiteFactory {
	if numThreads <= 0 {
		numThreads = 1
	}
	return &TFLiteFactory{
		modelPath:  modelPath,
		labelsPath: labelsPath,
		numThreads: numThreads,
	}
}

// Name エンジン名
func (f *TFLiteFactory) Name() string {
	return EngineTFLite
}

// NewEngine モデルを読み込んでインタープリタを準備
func (f *TFLiteFactory) NewEngine(opts domain.ClassifierOptions) (domain.Engine, error) {
	if _, err := os.Stat(f.modelPath); err != nil {
		return nil, fmt.Errorf("model file not available: %w", err)
	}

	labels, err := LoadLabels(f.labelsPath)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModelFromFile(f.modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load model: %s", f.modelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(f.numThreads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		slog.Error("TFLite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("failed to create interpreter")
	}

	engine := &TFLiteEngine{
		model:       model,
		options:     options,
		interpreter: interpreter,
		labels:      labels,
		opts:        opts,
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to allocate tensors: status %v", status)
	}

	if err := engine.inspectInput(); err != nil {
		_ = engine.Close()
		return nil, err
	}

	return engine, nil
}

// TFLiteEngine TFLiteインタープリタによる推論エンジン
type TFLiteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	labels      []string
	opts        domain.ClassifierOptions

	width    int
	height   int
	channels int
}

// inspectInput 入力テンソルの形状 [1, H, W, C] を確認
func (e *TFLiteEngine) inspectInput() error {
	input := e.interpreter.GetInputTensor(0)
	if input == nil {
		return errors.New("model has no input tensor")
	}
	if input.NumDims() != 4 {
		return fmt.Errorf("unsupported input rank: %d", input.NumDims())
	}

	e.height = input.Dim(1)
	e.width = input.Dim(2)
	e.channels = input.Dim(3)
	if e.channels != 1 && e.channels != 3 {
		return fmt.Errorf("unsupported input channels: %d", e.channels)
	}

	switch input.Type() {
	case tflite.UInt8, tflite.Float32:
	default:
		return fmt.Errorf("unsupported input type: %v", input.Type())
	}
	return nil
}

// Classify 画像を分類
func (e *TFLiteEngine) Classify(img image.Image) ([]domain.Classifications, error) {
	input := e.interpreter.GetInputTensor(0)

	switch input.Type() {
	case tflite.UInt8:
		fillUint8(input.UInt8s(), img, e.width, e.height, e.channels)
	case tflite.Float32:
		fillFloat32(input.Float32s(), img, e.width, e.height, e.channels, LayoutNHWC)
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke failed: status %v", status)
	}

	count := e.interpreter.GetOutputTensorCount()
	results := make([]domain.Classifications, 0, count)
	for head := 0; head < count; head++ {
		output := e.interpreter.GetOutputTensor(head)

		var scores []float32
		switch output.Type() {
		case tflite.UInt8:
			q := output.QuantizationParams()
			scores = dequantize(output.UInt8s(), q.Scale, q.ZeroPoint)
		case tflite.Float32:
			scores = append([]float32(nil), output.Float32s()...)
		default:
			return nil, fmt.Errorf("unsupported output type: %v", output.Type())
		}

		results = append(results, domain.Classifications{
			HeadIndex:  head,
			Categories: topCategories(scores, e.labels, e.opts),
		})
	}

	return results, nil
}

// Close インタープリタとモデルを解放
func (e *TFLiteEngine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
