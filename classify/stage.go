// Package classify - Two-stage scooter classification pipeline.
package classify

import (
	"time"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/postprocess"
)

// Runner executes one loaded classifier model on a normalized tensor and
// returns the raw score vector together with the time spent strictly inside
// model execution. *inference.Session satisfies it; tests substitute
// doubles.
type Runner interface {
	Run(t *images.Tensor) ([]float32, time.Duration, error)
}

// StagePrediction is the decoded outcome of one executed classifier stage.
type StagePrediction struct {
	// Class is the winning class index of this stage's model.
	Class int `json:"class_id"`
	// Confidence is the probability assigned to the winning class.
	Confidence float32 `json:"confidence"`
	// ElapsedMillis is the model execution time for this stage.
	ElapsedMillis int64 `json:"elapsed_ms"`
}

// Stage couples one classifier model with score decoding. Running a stage
// and decoding its output is identical for the presence and parking heads,
// so a single implementation serves both.
type Stage struct {
	name   string
	runner Runner
}

// NewStage builds a classifier stage around a loaded model.
//
// Arguments:
//   - name: Stage label used in logs and errors.
//   - runner: The loaded model, typically an *inference.Session.
//
// Returns:
//   - *Stage: The ready stage.
func NewStage(name string, runner Runner) *Stage {
	return &Stage{name: name, runner: runner}
}

// Name returns the stage label.
func (s *Stage) Name() string {
	return s.name
}

// Classify runs the stage's model on the tensor and decodes the scores into
// a class decision with per-stage latency.
//
// Arguments:
//   - t: The normalized input tensor.
//
// Returns:
//   - StagePrediction: The decoded stage outcome.
//   - error: The runner's error unchanged, or an *InvariantViolation if the
//     score vector breaks the three-class contract.
func (s *Stage) Classify(t *images.Tensor) (StagePrediction, error) {
	scores, elapsed, err := s.runner.Run(t)
	if err != nil {
		return StagePrediction{}, err
	}

	decoded, err := postprocess.Decode(scores)
	if err != nil {
		return StagePrediction{}, err
	}

	return StagePrediction{
		Class:         decoded.Class,
		Confidence:    decoded.Confidence,
		ElapsedMillis: elapsed.Milliseconds(),
	}, nil
}
