package analysis

// DeveloperProfile holds the aggregated evidence of one developer.
// Profiles are built once by the Aggregator and never mutated afterwards.
type DeveloperProfile struct {
	DeveloperID string
	// Repositories maps repository id to its activity: the number of distinct
	// file ids touched there, or the classified occurrences when the evidence
	// carries no file ids for that repository.
	Repositories   map[string]int
	LanguageCounts map[string]int
	TokenCounts    map[string]int
}

// TotalLanguageCount returns the number of language occurrences in the profile
func (p *DeveloperProfile) TotalLanguageCount() int {
	total := 0
	for _, n := range p.LanguageCounts {
		total += n
	}
	return total
}

type Contributor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

type RepositoryActivity struct {
	Repository string `json:"repository"`
	Files      int    `json:"files"`
}

// SimilarityResult is one ranked match for a query developer
type SimilarityResult struct {
	DeveloperID string  `json:"developer_id"`
	Score       float64 `json:"score"`

	// Components holds the unweighted score of every feature space by name.
	Components         map[string]float64   `json:"components"`
	TopLanguages       []Contributor        `json:"top_languages"`
	TopIdentifiers     []Contributor        `json:"top_identifiers"`
	TopRepositories    []RepositoryActivity `json:"top_repositories"`
	SharedRepositories []string             `json:"shared_repositories"`
}

// Query describes one top-K search against a snapshot
type Query struct {
	DeveloperID string
	Limit       int
	TopSize     int
}
