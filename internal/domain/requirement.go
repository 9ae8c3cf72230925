package domain

import (
	"encoding/json"
	"fmt"
)

// RequirementKind names the progress field a badge requirement is checked against.
type RequirementKind string

const (
	RequirementLessonsCompleted RequirementKind = "lessonsCompleted"
	RequirementStreak           RequirementKind = "streak"
	RequirementLevel            RequirementKind = "level"
	RequirementTotalXP          RequirementKind = "totalXp"
)

// requirementKinds fixes the evaluation and serialisation order.
var requirementKinds = []RequirementKind{
	RequirementLessonsCompleted,
	RequirementStreak,
	RequirementLevel,
	RequirementTotalXP,
}

// Requirement is a single numeric threshold on one progress field.
type Requirement struct {
	Kind      RequirementKind
	Threshold int
}

// MetBy reports whether the progress reaches the threshold.
func (r Requirement) MetBy(p UserProgress) bool {
	switch r.Kind {
	case RequirementLessonsCompleted:
		return p.LessonsCompleted >= r.Threshold
	case RequirementStreak:
		return p.CurrentStreak >= r.Threshold
	case RequirementLevel:
		return p.Level >= r.Threshold
	case RequirementTotalXP:
		return p.TotalXP >= r.Threshold
	}
	return false
}

// Requirements is the set of thresholds attached to a badge.
//
// A badge is earned when ANY present threshold is met. Two thresholds on the
// same badge are alternatives, not a conjunction.
type Requirements []Requirement

// SatisfiedBy applies the OR rule. A badge without requirements is never earned.
func (rs Requirements) SatisfiedBy(p UserProgress) bool {
	for _, r := range rs {
		if r.MetBy(p) {
			return true
		}
	}
	return false
}

// ParseRequirements builds requirements from the sparse record form,
// e.g. {"lessonsCompleted": 5, "streak": 7}.
func ParseRequirements(raw map[string]int) (Requirements, error) {
	known := make(map[RequirementKind]bool, len(requirementKinds))
	for _, k := range requirementKinds {
		known[k] = true
	}
	for key, threshold := range raw {
		if !known[RequirementKind(key)] {
			return nil, fmt.Errorf("%w: unknown badge requirement %q", ErrValidation, key)
		}
		if threshold < 0 {
			return nil, fmt.Errorf("%w: requirement %q must not be negative", ErrValidation, key)
		}
	}

	out := make(Requirements, 0, len(raw))
	for _, k := range requirementKinds {
		if threshold, ok := raw[string(k)]; ok {
			out = append(out, Requirement{Kind: k, Threshold: threshold})
		}
	}
	return out, nil
}

// Map returns the sparse record form.
func (rs Requirements) Map() map[string]int {
	out := make(map[string]int, len(rs))
	for _, r := range rs {
		out[string(r.Kind)] = r.Threshold
	}
	return out
}

func (rs Requirements) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Map())
}

func (rs *Requirements) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRequirements(raw)
	if err != nil {
		return err
	}
	*rs = parsed
	return nil
}
