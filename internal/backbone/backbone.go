// Package backbone runs pretrained image-classification networks for their
// intermediate feature maps. The forward pass is delegated to ONNX Runtime;
// this package owns only session lifecycle and the spatial pooling that
// turns a conv feature map into one vector per frame.
package backbone

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/preprocess"
)

// Backbone produces a conv feature map for a batch of preprocessed frames.
type Backbone interface {
	// Features runs the forward pass on an NCHW batch and returns the
	// network's feature map, shaped [N, C, H', W'].
	Features(batch *feature.Tensor) (*feature.Tensor, error)
	// Close releases the native session. Must be called when finished.
	Close() error
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ensureRuntime initializes the shared ONNX Runtime environment once per
// process. libraryPath may be empty to use the library's default lookup.
func ensureRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ORTBackbone wraps a single ONNX Runtime session over a pretrained
// backbone export whose output is the pre-logits feature map.
type ORTBackbone struct {
	profile    preprocess.Profile
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

// NewORTBackbone loads the ONNX export at modelPath for the given profile.
// The export must have exactly one input (NCHW image batch) and its first
// output must be the feature map.
func NewORTBackbone(modelPath, libraryPath string, profile preprocess.Profile) (*ORTBackbone, error) {
	if err := ensureRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("backbone: initializing onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("backbone: inspecting %s: %w", modelPath, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("backbone: %s has %d inputs and %d outputs, want 1 input and at least 1 output",
			modelPath, len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("backbone: creating session for %s: %w", modelPath, err)
	}

	return &ORTBackbone{
		profile:    profile,
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

// Features implements Backbone.
func (b *ORTBackbone) Features(batch *feature.Tensor) (*feature.Tensor, error) {
	if len(batch.Shape) != 4 {
		return nil, fmt.Errorf("backbone: batch must be NCHW, got %d dims", len(batch.Shape))
	}

	dims := make([]int64, len(batch.Shape))
	for i, d := range batch.Shape {
		dims[i] = int64(d)
	}
	input, err := ort.NewTensor(ort.NewShape(dims...), batch.Data)
	if err != nil {
		return nil, fmt.Errorf("backbone: building input tensor: %w", err)
	}
	defer input.Destroy()

	// A nil output slot lets the runtime allocate the feature map, whose
	// spatial dims vary per backbone.
	outputs := []ort.Value{nil}
	if err := b.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("backbone: forward pass: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("backbone: output %s is not a float32 tensor", b.outputName)
	}
	defer out.Destroy()

	shape := out.GetShape()
	goShape := make([]int, len(shape))
	for i, d := range shape {
		goShape[i] = int(d)
	}
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())

	return &feature.Tensor{Shape: goShape, Data: data}, nil
}

// Profile returns the backbone's input profile.
func (b *ORTBackbone) Profile() preprocess.Profile {
	return b.profile
}

// Close implements Backbone.
func (b *ORTBackbone) Close() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Destroy()
	b.session = nil
	return err
}
