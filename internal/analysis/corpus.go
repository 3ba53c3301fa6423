package analysis

import "math"

// CorpusStatistics holds the cross-developer counts needed to weight content vectors
type CorpusStatistics struct {
	DocumentFrequency map[string]int `json:"document_frequency"`
	TotalDevelopers   int            `json:"total_developers"`
}

// ComputeStatistics counts, for every token, how many profiles contain it
func ComputeStatistics(profiles map[string]*DeveloperProfile) *CorpusStatistics {
	stats := &CorpusStatistics{
		DocumentFrequency: make(map[string]int),
		TotalDevelopers:   len(profiles),
	}

	for _, p := range profiles {
		for tok, n := range p.TokenCounts {
			if n > 0 {
				stats.DocumentFrequency[tok]++
			}
		}
	}

	return stats
}

// IDF computes log(N/df). It is exactly zero for tokens found in every
// profile and for tokens the corpus has never seen.
func (s *CorpusStatistics) IDF(token string) float64 {
	df := s.DocumentFrequency[token]
	if df <= 0 || s.TotalDevelopers <= 0 || df >= s.TotalDevelopers {
		return 0
	}
	return math.Log(float64(s.TotalDevelopers) / float64(df))
}

// VocabularySize returns the number of distinct tokens in the corpus
func (s *CorpusStatistics) VocabularySize() int {
	return len(s.DocumentFrequency)
}
