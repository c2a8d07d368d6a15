package model

// ConfidenceLevel classifies how trustworthy a resolved field value is.
// This is a three-state classification, not a continuous score.
type ConfidenceLevel string

const (
	// ConfidenceHigh means a single calculation succeeded, or every
	// applicable calculation agreed on the value.
	ConfidenceHigh ConfidenceLevel = "high"
	// ConfidenceMedium is reserved for manually adjudicated values;
	// resolution itself never produces it.
	ConfidenceMedium ConfidenceLevel = "medium"
	// ConfidenceVeryLow means two or more calculations disagreed.
	ConfidenceVeryLow ConfidenceLevel = "very_low"
)

// NeedsReview reports whether a value at this confidence should be routed
// to the human review queue instead of being auto-accepted.
func (c ConfidenceLevel) NeedsReview() bool {
	return c == ConfidenceVeryLow
}
