// Package threshold decides whether a sentiment score crosses the configured
// alert thresholds.
package threshold

import (
	"math"

	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/models"
)

// Thresholds holds the configured crossing levels.
// Negative must be strictly below Positive.
type Thresholds struct {
	Positive float64
	Negative float64
}

// Validate checks the ordering invariant. It is meant to run once at startup.
func Validate(positive, negative float64) error {
	if math.IsNaN(positive) || math.IsNaN(negative) {
		return apperrors.NewValidationError("thresholds", [2]float64{positive, negative}, "thresholds must be numbers")
	}
	if negative >= positive {
		return apperrors.NewValidationError("negative_threshold", negative, "must be below positive_threshold")
	}
	return nil
}

// Validate checks the ordering invariant.
func (t Thresholds) Validate() error {
	return Validate(t.Positive, t.Negative)
}

// Evaluate classifies a score. POSITIVE wins when score >= positive, NEGATIVE
// when score <= negative, NONE otherwise (including NaN).
func Evaluate(score, positive, negative float64) models.Condition {
	switch {
	case math.IsNaN(score):
		return models.ConditionNone
	case score >= positive:
		return models.ConditionPositive
	case score <= negative:
		return models.ConditionNegative
	default:
		return models.ConditionNone
	}
}

// Evaluate classifies a score against t.
func (t Thresholds) Evaluate(score float64) models.Condition {
	return Evaluate(score, t.Positive, t.Negative)
}
