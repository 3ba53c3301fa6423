package analysis

import (
	"fmt"
	"math"
)

// BlendWeights splits alpha into the language and content space weights.
func BlendWeights(alpha float64) [2]float64 {
	alpha = clip(alpha, 0, 1)
	return [2]float64{alpha, 1 - alpha}
}

// ValidateAlpha rejects weights outside [0, 1].
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return fmt.Errorf("alpha must be within [0, 1], got %v", alpha)
	}
	return nil
}

// validateSpaces checks that space weights are non-negative, sum to one and
// that names are unique.
func validateSpaces(spaces []FeatureSpace) error {
	if len(spaces) == 0 {
		return fmt.Errorf("at least one feature space is required")
	}

	seen := make(map[string]bool, len(spaces))
	total := 0.0
	for _, s := range spaces {
		if s.Name == "" || s.Build == nil {
			return fmt.Errorf("feature space needs a name and a builder")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate feature space %q", s.Name)
		}
		seen[s.Name] = true
		if math.IsNaN(s.Weight) || s.Weight < 0 || s.Weight > 1 {
			return fmt.Errorf("feature space %q weight must be within [0, 1], got %v", s.Name, s.Weight)
		}
		total += s.Weight
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("feature space weights must sum to 1, got %v", total)
	}
	return nil
}

// combine blends per-space scores in space order
func combine(spaces []FeatureSpace, scores []float64) float64 {
	s := 0.0
	for i, space := range spaces {
		s += space.Weight * scores[i]
	}
	return clip(s, 0, 1)
}
