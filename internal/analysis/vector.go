package analysis

import (
	"math"
	"sort"
)

// Vector is a sparse, non-negative feature vector. Keys are kept sorted and
// the norm precomputed so every reduction runs in the same order.
type Vector struct {
	weights map[string]float64
	keys    []string
	norm    float64
}

// NewVector builds a vector from a weight map, dropping zero and negative entries
func NewVector(weights map[string]float64) Vector {
	v := Vector{weights: make(map[string]float64, len(weights))}
	for k, w := range weights {
		if w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w) {
			v.weights[k] = w
			v.keys = append(v.keys, k)
		}
	}
	sort.Strings(v.keys)

	sumSq := 0.0
	for _, k := range v.keys {
		w := v.weights[k]
		sumSq += w * w
	}
	v.norm = math.Sqrt(sumSq)
	return v
}

// Weight returns the weight of dimension k, zero when absent
func (v Vector) Weight(k string) float64 {
	return v.weights[k]
}

// Keys returns the non-zero dimensions in ascending order
func (v Vector) Keys() []string {
	return v.keys
}

// Len returns the number of non-zero dimensions
func (v Vector) Len() int {
	return len(v.keys)
}

// Norm returns the Euclidean norm
func (v Vector) Norm() float64 {
	return v.norm
}

// Sum returns the sum of all weights
func (v Vector) Sum() float64 {
	s := 0.0
	for _, k := range v.keys {
		s += v.weights[k]
	}
	return s
}

// BuildLanguageVector turns language counts into a probability distribution
func BuildLanguageVector(p *DeveloperProfile) Vector {
	total := p.TotalLanguageCount()
	if total == 0 {
		return NewVector(nil)
	}

	weights := make(map[string]float64, len(p.LanguageCounts))
	for lang, n := range p.LanguageCounts {
		weights[lang] = float64(n) / float64(total)
	}
	return NewVector(weights)
}

// BuildContentVector weights token counts by inverse document frequency.
// Tokens present in every profile get weight zero and are left out.
func BuildContentVector(p *DeveloperProfile, stats *CorpusStatistics) Vector {
	weights := make(map[string]float64, len(p.TokenCounts))
	for tok, tf := range p.TokenCounts {
		if tf <= 0 {
			continue
		}
		weights[tok] = float64(tf) * stats.IDF(tok)
	}
	return NewVector(weights)
}
