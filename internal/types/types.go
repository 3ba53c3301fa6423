package types

// Evidence is one observed file revision attributed to a developer, as produced
// by the external collection pipeline.
type Evidence struct {
	DeveloperID  string   `json:"developer_id"`
	RepositoryID string   `json:"repository_id"`
	FileID       string   `json:"file_id,omitempty"`
	Revision     string   `json:"revision,omitempty"`
	Language     string   `json:"language"`
	Identifiers  []string `json:"identifiers,omitempty"`
	Imports      []string `json:"imports,omitempty"`
	// Occurrences is the multiplicity of this record. Zero means one.
	Occurrences int `json:"occurrences,omitempty"`
}

// Weight returns the number of occurrences the record stands for.
func (e Evidence) Weight() int {
	if e.Occurrences == 0 {
		return 1
	}
	return e.Occurrences
}

// SimilarRequest represents the query parameters of the similar developers
// endpoint. Nil fields fall back to the configured defaults.
type SimilarRequest struct {
	Limit   *int `form:"limit"`
	TopSize *int `form:"top_size"`
}
