// Package inference - Classifier session lifecycle and execution.
package inference

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

// Session owns one loaded classifier model together with its preallocated
// input and output tensors. There is exactly one long-lived session per
// model for the process lifetime; sessions are never pooled or reloaded.
type Session struct {
	name    string
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	mu        sync.RWMutex
	runCount  int64
	totalTime time.Duration
}

// Stats is a snapshot of a session's execution counters.
type Stats struct {
	// Name labels the session the counters belong to.
	Name string `json:"name"`
	// RunCount is the number of completed inference calls.
	RunCount int64 `json:"run_count"`
	// TotalMillis is the accumulated native execution time.
	TotalMillis float64 `json:"total_ms"`
	// AverageMillis is TotalMillis over RunCount.
	AverageMillis float64 `json:"average_ms"`
}

// NewSessionArgs represents the arguments for creating a classifier session.
type NewSessionArgs struct {
	// Name labels the session in errors, logs and metrics.
	Name string
	// ModelPath is the path to the serialized ONNX model.
	ModelPath string
	// InputWidth is the width of the model input tensor.
	InputWidth int
	// InputHeight is the height of the model input tensor.
	InputHeight int
	// NumClasses is the width of the model's score vector.
	NumClasses int
	// InputName is the model's input node name. Defaults to "input".
	InputName string
	// OutputName is the model's output node name. Defaults to "output".
	OutputName string
	// IntraOpThreads bounds parallelism inside graph nodes. 0 lets the
	// runtime decide.
	IntraOpThreads int
}

// NewSession loads one classifier model and binds fixed-shape tensors to it.
//
// Order of operations:
//  1. Model file check, before any native call.
//  2. Tensor allocation: input [1, 3, H, W], output [1, NumClasses].
//  3. Session options: threading and graph optimization level.
//  4. Session creation: loads the model and binds the tensors.
//
// Every allocated native resource is destroyed again if a later step fails.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *Session: The ready session.
//   - error: A *ModelLoadError if the model file is missing or the runtime
//     rejects it.
func NewSession(args NewSessionArgs) (*Session, error) {
	info, err := os.Stat(args.ModelPath)
	if err != nil {
		return nil, &ModelLoadError{Path: args.ModelPath, Err: err}
	}
	if info.Size() == 0 {
		return nil, &ModelLoadError{Path: args.ModelPath, Err: errors.New("model file is empty")}
	}
	if !ort.IsInitialized() {
		return nil, &ModelLoadError{
			Path: args.ModelPath,
			Err:  errors.New("onnxruntime environment is not initialized, call InitRuntime first"),
		}
	}

	inputName := args.InputName
	if inputName == "" {
		inputName = "input"
	}
	outputName := args.OutputName
	if outputName == "" {
		outputName = "output"
	}

	input, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, models.InputChannels, int64(args.InputHeight), int64(args.InputWidth)),
	)
	if err != nil {
		return nil, &ModelLoadError{Path: args.ModelPath, Err: fmt.Errorf("error creating input tensor: %w", err)}
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(args.NumClasses)))
	if err != nil {
		input.Destroy()
		return nil, &ModelLoadError{Path: args.ModelPath, Err: fmt.Errorf("error creating output tensor: %w", err)}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, &ModelLoadError{Path: args.ModelPath, Err: fmt.Errorf("error creating session options: %w", err)}
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(args.IntraOpThreads)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, &ModelLoadError{Path: args.ModelPath, Err: fmt.Errorf("error creating ORT session: %w", err)}
	}

	return &Session{
		name:    args.Name,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// NewClassifierSession loads the session for one registered classifier head.
//
// Arguments:
//   - spec: The classifier head descriptor.
//   - intraOpThreads: Thread bound passed through to the runtime.
//
// Returns:
//   - *Session: The ready session.
//   - error: A *ModelLoadError on any load failure.
func NewClassifierSession(spec models.Spec, intraOpThreads int) (*Session, error) {
	if err := spec.Validate(); err != nil {
		return nil, &ModelLoadError{Path: spec.Path, Err: err}
	}
	return NewSession(NewSessionArgs{
		Name:           string(spec.Role),
		ModelPath:      spec.Path,
		InputWidth:     spec.InputWidth,
		InputHeight:    spec.InputHeight,
		NumClasses:     spec.NumClasses,
		IntraOpThreads: intraOpThreads,
	})
}

// Name returns the label the session was created with.
func (s *Session) Name() string {
	return s.name
}

// Run executes the model on one normalized tensor and returns the raw class
// scores. The returned duration is wall-clock time measured strictly around
// the native execution call; tensor copies are excluded.
//
// Run serializes concurrent callers: the underlying session is not safe for
// overlapping invocations.
//
// Arguments:
//   - t: The normalized input tensor.
//
// Returns:
//   - []float32: A copy of the model's score vector.
//   - time.Duration: Time spent inside the native call.
//   - error: A *SessionNotReadyError if the session is released, or a
//     *InferenceError on any runtime failure.
func (s *Session) Run(t *images.Tensor) ([]float32, time.Duration, error) {
	if t == nil {
		return nil, 0, &InferenceError{Name: s.name, Err: errors.New("nil input tensor")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, 0, &SessionNotReadyError{Name: s.name}
	}

	dst := s.input.GetData()
	if len(t.Data) != len(dst) {
		return nil, 0, &InferenceError{
			Name: s.name,
			Err:  fmt.Errorf("tensor holds %d floats, session expects %d", len(t.Data), len(dst)),
		}
	}
	copy(dst, t.Data)

	start := time.Now()
	err := s.session.Run()
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, &InferenceError{Name: s.name, Err: err}
	}

	s.runCount++
	s.totalTime += elapsed

	out := s.output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, elapsed, nil
}

// Stats returns a snapshot of the session's execution counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Name:        s.name,
		RunCount:    s.runCount,
		TotalMillis: float64(s.totalTime.Nanoseconds()) / 1e6,
	}
	if s.runCount > 0 {
		stats.AverageMillis = stats.TotalMillis / float64(s.runCount)
	}
	return stats
}

// Close releases the session and its tensors. Exactly one release does
// work; second and later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return fmt.Errorf("error destroying ORT session %s: %w", s.name, err)
		}
	}
	return nil
}
