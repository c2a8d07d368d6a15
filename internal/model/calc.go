package model

// CalculationGroup declares one way to derive a field's value from other
// fields. The target field is the left-hand side of Formula. Multiple groups
// may target the same field; Priority decides which wins when they disagree
// (lower integer = higher precedence, ties broken by declaration order).
type CalculationGroup struct {
	ID              string   `json:"id"`
	Formula         string   `json:"formula"`
	DependentFields []string `json:"dependent_fields"`
	Priority        int      `json:"priority"`
}
