// Package models provides domain models for the sentiment alert pipeline.
package models

import (
	"math"
	"strings"
	"time"
)

// Condition represents the outcome of evaluating a score against thresholds.
type Condition string

const (
	ConditionPositive Condition = "POSITIVE"
	ConditionNegative Condition = "NEGATIVE"
	ConditionNone     Condition = "NONE"
)

// Direction is the alerting subset of Condition.
type Direction string

const (
	DirectionPositive Direction = "POSITIVE"
	DirectionNegative Direction = "NEGATIVE"
)

// Direction converts an alerting condition to its direction.
// ok is false for ConditionNone.
func (c Condition) Direction() (Direction, bool) {
	switch c {
	case ConditionPositive:
		return DirectionPositive, true
	case ConditionNegative:
		return DirectionNegative, true
	default:
		return "", false
	}
}

// IsAlert reports whether the condition warrants a notification.
func (c Condition) IsAlert() bool {
	return c == ConditionPositive || c == ConditionNegative
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionPositive || d == DirectionNegative
}

// NormalizeTicker upper-cases and trims a symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SentimentReading is a score fetched for one ticker during one cycle.
type SentimentReading struct {
	Ticker    string
	Score     float64
	FetchedAt time.Time
}

// Finite reports whether the score is a usable number.
func (r SentimentReading) Finite() bool {
	return !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0)
}
