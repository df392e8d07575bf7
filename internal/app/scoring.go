package app

import (
	"math"
	"strconv"
)

// ScorePercent returns 100*correct/total at full precision, or 0 for an empty attempt.
func ScorePercent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}

// RoundPercent rounds to one decimal place for display.
func RoundPercent(p float64) float64 {
	return math.Round(p*10) / 10
}

// FormatPercent renders p with one decimal, e.g. "66.7".
func FormatPercent(p float64) string {
	return strconv.FormatFloat(RoundPercent(p), 'f', 1, 64)
}
