package analysis

import "math"

// Feature space names used in results and configuration.
const (
	SpaceLanguages   = "languages"
	SpaceIdentifiers = "identifiers"
)

// DefaultAlpha is the weight of the language space in the combined score.
const DefaultAlpha = 0.5

// FeatureSpace turns a profile into a vector in one named space
type FeatureSpace struct {
	Name   string
	Weight float64
	Build  func(p *DeveloperProfile, stats *CorpusStatistics) Vector
}

// LanguageSpace is the language-usage distribution space
func LanguageSpace(weight float64) FeatureSpace {
	return FeatureSpace{
		Name:   SpaceLanguages,
		Weight: weight,
		Build: func(p *DeveloperProfile, _ *CorpusStatistics) Vector {
			return BuildLanguageVector(p)
		},
	}
}

// ContentSpace is the TF-IDF weighted identifier and import space
func ContentSpace(weight float64) FeatureSpace {
	return FeatureSpace{
		Name:   SpaceIdentifiers,
		Weight: weight,
		Build:  BuildContentVector,
	}
}

// DefaultSpaces returns the language and content spaces blended by alpha
func DefaultSpaces(alpha float64) []FeatureSpace {
	w := BlendWeights(alpha)
	return []FeatureSpace{
		LanguageSpace(w[0]),
		ContentSpace(w[1]),
	}
}

// Cosine computes the cosine similarity of two sparse vectors over their
// shared dimensions. Zero-norm vectors score 0.
func Cosine(a, b Vector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	return clip(dot(a, b)/(a.norm*b.norm), 0, 1)
}

// dot walks the smaller vector in key order. The visited keys are the sorted
// intersection either way, so dot(a, b) == dot(b, a) bit for bit.
func dot(a, b Vector) float64 {
	small, large := a, b
	if len(large.keys) < len(small.keys) {
		small, large = large, small
	}

	s := 0.0
	for _, k := range small.keys {
		if w, ok := large.weights[k]; ok {
			s += small.weights[k] * w
		}
	}
	return s
}

// Contributions returns the normalized per-dimension share of the cosine,
// w_a[d]*w_b[d]/(|a||b|), for every shared dimension.
func Contributions(a, b Vector) []Contributor {
	if a.norm == 0 || b.norm == 0 {
		return nil
	}

	small, large := a, b
	if len(large.keys) < len(small.keys) {
		small, large = large, small
	}

	denom := a.norm * b.norm
	contribs := make([]Contributor, 0)
	for _, k := range small.keys {
		if w, ok := large.weights[k]; ok {
			contribs = append(contribs, Contributor{
				Name:         k,
				Contribution: small.weights[k] * w / denom,
			})
		}
	}
	return contribs
}

func clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
