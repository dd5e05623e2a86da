// Package postprocess - Decoding of raw classifier scores into decisions.
package postprocess

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

// Prediction is the decoded outcome of one classifier invocation.
type Prediction struct {
	// Class is the winning class index.
	Class int
	// Confidence is the probability assigned to the winning class.
	Confidence float32
	// Probabilities is the full distribution over the classes.
	Probabilities []float32
}

// Softmax converts raw scores into a probability distribution. The maximum
// score is subtracted from every element before exponentiation so large
// logits cannot overflow.
//
// Arguments:
//   - scores: The raw score vector from a classifier head.
//
// Returns:
//   - []float32: Probabilities summing to 1, same length as the input.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make([]float32, len(scores))
	var sum float32
	for i, s := range scores {
		v := math32.Exp(s - maxScore)
		probs[i] = v
		sum += v
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest value. The scan runs left to
// right and only a strictly larger value displaces the current winner, so
// the first index achieving the maximum wins and ties stay deterministic.
func Argmax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	idx := 0
	best := values[0]
	for i := 1; i < len(values); i++ {
		if values[i] > best {
			best = values[i]
			idx = i
		}
	}
	return idx
}

// Decode turns one model's raw score vector into a class decision.
//
// Arguments:
//   - scores: The raw score vector. Both classifier heads produce exactly
//     models.ClassCount scores; anything else means the session is wired to
//     the wrong model.
//
// Returns:
//   - Prediction: The winning class, its probability, and the distribution.
//   - error: An *InvariantViolation if the vector width breaks the contract.
func Decode(scores []float32) (Prediction, error) {
	if len(scores) != models.ClassCount {
		return Prediction{}, &InvariantViolation{
			Message: fmt.Sprintf("classifier returned %d scores, contract is %d",
				len(scores), models.ClassCount),
		}
	}

	probs := Softmax(scores)
	idx := Argmax(probs)
	return Prediction{
		Class:         idx,
		Confidence:    probs[idx],
		Probabilities: probs,
	}, nil
}
