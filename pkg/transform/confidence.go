package transform

import (
	"fmt"

	"mercator-hq/gatekeeper/pkg/remediation"
)

// DefaultSuccessRate is used for templates that declare no success rate.
const DefaultSuccessRate = 0.5

// Weights combine the confidence factors of a correction.
type Weights struct {
	MatchStrength float64 `yaml:"match_strength"`
	SuccessRate   float64 `yaml:"success_rate"`
	Completeness  float64 `yaml:"context_completeness"`
}

// DefaultWeights returns the default confidence weights.
func DefaultWeights() Weights {
	return Weights{MatchStrength: 0.4, SuccessRate: 0.3, Completeness: 0.3}
}

// Validate checks that weights are non-negative and not all zero.
func (w Weights) Validate() error {
	if w.MatchStrength < 0 || w.SuccessRate < 0 || w.Completeness < 0 {
		return fmt.Errorf("%w: weights cannot be negative", ErrInvalidWeights)
	}
	if w.MatchStrength+w.SuccessRate+w.Completeness == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidWeights)
	}
	return nil
}

// Score computes a confidence in [0, 1]. The weights are normalized by
// their sum.
func (w Weights) Score(kind remediation.MatchKind, successRate, completeness float64) float64 {
	if successRate == 0 {
		successRate = DefaultSuccessRate
	}
	total := w.MatchStrength + w.SuccessRate + w.Completeness
	if total <= 0 {
		return 0
	}
	score := (w.MatchStrength*kind.Strength() +
		w.SuccessRate*successRate +
		w.Completeness*completeness) / total
	return min(1, max(0, score))
}
