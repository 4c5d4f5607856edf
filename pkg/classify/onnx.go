package classify

import (
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/medwave/breathscan/pkg/mfcc"
)

// InitRuntime initializes the ONNX Runtime environment. Call once per
// process before constructing models. libPath optionally points at the
// onnxruntime shared library; when empty the platform default name is
// resolved from the library search path.
func InitRuntime(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if ort.IsInitialized() {
		return nil
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("classify: init onnxruntime: %w", err)
	}
	return nil
}

// DestroyRuntime tears down the ONNX Runtime environment. Call after
// all models are closed, typically on process shutdown.
func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("classify: destroy onnxruntime: %w", err)
	}
	return nil
}

// ONNXModel implements [Model] with an ONNX Runtime session.
//
// The expected model input is a rank-4 float32 tensor
// [1, coefficients, frames, 1] — the MFCC matrix with batch and channel
// axes added — and the output is [1, numClasses] softmax probabilities.
//
// Session.Run is internally synchronized by ONNX Runtime, so one
// ONNXModel serves concurrent Predict calls.
type ONNXModel struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	classes int
	closed  bool

	inputName  string
	outputName string
}

// ONNXOption configures an ONNXModel.
type ONNXOption func(*ONNXModel)

// WithTensorNames overrides the model's input and output tensor names.
// Defaults: "input" and "output".
func WithTensorNames(input, output string) ONNXOption {
	return func(m *ONNXModel) {
		m.inputName = input
		m.outputName = output
	}
}

// NewONNXModel loads a serialized classifier from modelPath. numClasses
// must equal the taxonomy size; the output layer is validated against it
// on every call.
func NewONNXModel(modelPath string, numClasses int, opts ...ONNXOption) (*ONNXModel, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("classify: invalid class count %d", numClasses)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("classify: model artifact: %w", err)
	}

	m := &ONNXModel{
		classes:    numClasses,
		inputName:  "input",
		outputName: "output",
	}
	for _, opt := range opts {
		opt(m)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{m.inputName},
		[]string{m.outputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("classify: load model: %w", err)
	}
	m.session = session
	return m, nil
}

// Predict implements [Model]. The feature matrix is flattened row-major
// into a [1, coeffs, frames, 1] tensor; values are not altered.
func (m *ONNXModel) Predict(features mfcc.Matrix) ([]float32, error) {
	m.mu.Lock()
	if m.closed || m.session == nil {
		m.mu.Unlock()
		return nil, ErrModelNotLoaded
	}
	session := m.session
	m.mu.Unlock()

	coeffs := features.NumCoeffs()
	frames := features.NumFrames()
	if coeffs == 0 || frames == 0 {
		return nil, fmt.Errorf("classify: empty feature matrix")
	}

	input, err := ort.NewTensor(
		ort.NewShape(1, int64(coeffs), int64(frames), 1),
		features.Flatten(),
	)
	if err != nil {
		return nil, fmt.Errorf("classify: create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(m.classes)))
	if err != nil {
		return nil, fmt.Errorf("classify: create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("classify: inference: %w", err)
	}

	data := output.GetData()
	if len(data) != m.classes {
		return nil, fmt.Errorf("classify: output length %d, want %d classes", len(data), m.classes)
	}
	probs := make([]float32, m.classes)
	copy(probs, data)
	for i, p := range probs {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			return nil, fmt.Errorf("classify: non-finite probability at index %d", i)
		}
	}
	return probs, nil
}

// Close releases the inference session. Predict returns
// ErrModelNotLoaded afterwards.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.session != nil {
		err := m.session.Destroy()
		m.session = nil
		if err != nil {
			return fmt.Errorf("classify: close session: %w", err)
		}
	}
	return nil
}
