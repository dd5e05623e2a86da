// Package classify - Orchestration of the two classification stages.
package classify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

// Normalizer turns raw photo bytes into a model input tensor.
// *images.Preprocessor satisfies it.
type Normalizer interface {
	Normalize(data []byte) (*images.Tensor, error)
}

// Prediction is the final outcome of one classification request. It is
// built once at the end of the request, returned to the caller, and never
// cached or persisted.
type Prediction struct {
	// Presence is the outcome of the presence stage.
	Presence StagePrediction `json:"presence"`
	// Parking is the outcome of the parking stage. Nil when the scene was
	// empty, the stage is unconfigured, or the stage failed and the result
	// was degraded.
	Parking *StagePrediction `json:"parking"`
	// Label is the merged categorical outcome.
	Label string `json:"label"`
	// TotalElapsedMillis sums the execution time of the stages that ran.
	TotalElapsedMillis int64 `json:"total_elapsed_ms"`
}

// Metrics is a snapshot of pipeline request counters.
type Metrics struct {
	// Requests counts classification attempts.
	Requests int64 `json:"requests"`
	// Failures counts requests that returned an error.
	Failures int64 `json:"failures"`
	// Degraded counts requests that lost their parking stage to a
	// secondary failure.
	Degraded int64 `json:"degraded"`
}

// NewPipelineArgs represents the arguments for building a pipeline.
type NewPipelineArgs struct {
	// Normalizer prepares photo bytes for both stages.
	Normalizer Normalizer
	// Presence is the mandatory first stage.
	Presence *Stage
	// Parking is the optional second stage. Nil collapses the pipeline to
	// presence-only: parking status is never classified.
	Parking *Stage
	// Logger receives degrade notices. Nil uses the default logger.
	Logger *log.Logger
}

// Pipeline sequences presence detection, conditional parking-status
// detection, and result merging for one photo at a time.
//
// A mutex serializes requests: the loaded sessions are not safe for
// overlapping invocations, so at most one classification is in flight per
// pipeline. Within a request the order is fixed: presence inference, then
// the branch decision, then parking inference. The branch is a correctness
// gate, not an optimization.
type Pipeline struct {
	normalizer Normalizer
	presence   *Stage
	parking    *Stage
	logger     *log.Logger

	mu       sync.Mutex
	requests atomic.Int64
	failures atomic.Int64
	degraded atomic.Int64
}

// NewPipeline wires the orchestrator from injected parts.
//
// Arguments:
//   - args: The pipeline dependencies.
//
// Returns:
//   - *Pipeline: The ready pipeline.
//   - error: An error if a mandatory dependency is missing.
func NewPipeline(args NewPipelineArgs) (*Pipeline, error) {
	if args.Normalizer == nil {
		return nil, errors.New("pipeline requires a normalizer")
	}
	if args.Presence == nil {
		return nil, errors.New("pipeline requires a presence stage")
	}
	logger := args.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		normalizer: args.Normalizer,
		presence:   args.Presence,
		parking:    args.Parking,
		logger:     logger,
	}, nil
}

// HasParkingStage reports whether the second stage is configured.
func (p *Pipeline) HasParkingStage() bool {
	return p.parking != nil
}

// Classify runs the full state machine over one photo:
//
//  1. Decode and normalize the bytes. A decode failure aborts the request.
//  2. Presence inference. A failure here aborts the request.
//  3. Branch: presence class 0 ends the request without touching the
//     parking model.
//  4. Parking inference on the same tensor. A failure here degrades the
//     result to the presence outcome instead of discarding it, since
//     presence detection already succeeded and is useful on its own.
//  5. Merge stage timings and derive the final label.
//
// The context is honored at entry only: a request that has started runs to
// completion, matching the sessions' no-cancellation contract. Timeouts
// must wrap the whole call.
//
// Arguments:
//   - ctx: Checked once before any work starts.
//   - raw: Encoded photo bytes.
//
// Returns:
//   - *Prediction: The merged outcome.
//   - error: The originating typed error when steps 1 or 2 fail.
func (p *Pipeline) Classify(ctx context.Context, raw []byte) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests.Add(1)

	tensor, err := p.normalizer.Normalize(raw)
	if err != nil {
		p.failures.Add(1)
		return nil, err
	}

	presence, err := p.presence.Classify(tensor)
	if err != nil {
		p.failures.Add(1)
		return nil, err
	}

	// An empty scene never reaches the parking model.
	if models.PresenceClass(presence.Class) == models.PresenceAbsent {
		return p.merge(presence, nil), nil
	}

	if p.parking == nil {
		return p.merge(presence, nil), nil
	}

	parking, err := p.parking.Classify(tensor)
	if err != nil {
		p.degraded.Add(1)
		p.logger.Printf("parking stage failed, degrading to presence-only result: %v", err)
		return p.merge(presence, nil), nil
	}

	return p.merge(presence, &parking), nil
}

// merge assembles the final prediction from the executed stages.
func (p *Pipeline) merge(presence StagePrediction, parking *StagePrediction) *Prediction {
	total := presence.ElapsedMillis
	if parking != nil {
		total += parking.ElapsedMillis
	}
	return &Prediction{
		Presence:           presence,
		Parking:            parking,
		Label:              deriveLabel(presence, parking),
		TotalElapsedMillis: total,
	}
}

// deriveLabel maps the stage outcomes onto the caller-facing vocabulary.
func deriveLabel(presence StagePrediction, parking *StagePrediction) string {
	if models.PresenceClass(presence.Class) == models.PresenceAbsent {
		return models.LabelNoScooter
	}
	if parking == nil {
		return models.LabelHardToSay
	}
	switch models.ParkingClass(parking.Class) {
	case models.ParkingInside:
		return models.LabelInside
	case models.ParkingOutside:
		return models.LabelOutside
	default:
		return models.LabelHardToSay
	}
}

// Metrics returns a snapshot of the request counters. It does not wait for
// an in-flight request.
func (p *Pipeline) Metrics() Metrics {
	return Metrics{
		Requests: p.requests.Load(),
		Failures: p.failures.Load(),
		Degraded: p.degraded.Load(),
	}
}
