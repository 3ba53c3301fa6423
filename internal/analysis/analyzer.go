package analysis

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/types"
)

// Options configures how a snapshot is built and searched
type Options struct {
	Dedup DedupMode
	// Alpha weights the language space against the content space. It is
	// ignored when Spaces is set.
	Alpha   float64
	Spaces  []FeatureSpace
	Workers int
	OnSkip  SkipHandler
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		Dedup:   DedupFile,
		Alpha:   DefaultAlpha,
		Workers: runtime.NumCPU(),
	}
}

// Snapshot is an immutable view of profiles, corpus statistics and vectors.
// It is safe for concurrent searches.
type Snapshot struct {
	profiles map[string]*DeveloperProfile
	ids      []string
	stats    *CorpusStatistics
	spaces   []FeatureSpace
	vectors  map[string][]Vector
	report   AggregateReport
	workers  int
}

// NewSnapshot aggregates evidence and builds every vector the search needs
func NewSnapshot(records []types.Evidence, opts Options) (*Snapshot, error) {
	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	aggregator := NewAggregator(opts.Dedup).WithSkipHandler(opts.OnSkip)
	profiles, report := aggregator.Aggregate(records)

	s := buildSnapshot(profiles, opts)
	s.report = report
	return s, nil
}

// NewSnapshotFromProfiles builds a snapshot from already aggregated profiles
func NewSnapshotFromProfiles(profiles map[string]*DeveloperProfile, opts Options) (*Snapshot, error) {
	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	kept := make(map[string]*DeveloperProfile, len(profiles))
	withoutLanguage := 0
	for id, p := range profiles {
		if p == nil || p.TotalLanguageCount() == 0 {
			withoutLanguage++
			continue
		}
		kept[id] = p
	}

	s := buildSnapshot(kept, opts)
	s.report = AggregateReport{
		Skipped:         map[string]int{},
		WithoutLanguage: withoutLanguage,
		Developers:      len(kept),
	}
	return s, nil
}

func validateOptions(opts *Options) error {
	if opts.Dedup == "" {
		opts.Dedup = DedupFile
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if len(opts.Spaces) == 0 {
		if err := ValidateAlpha(opts.Alpha); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		opts.Spaces = DefaultSpaces(opts.Alpha)
	}
	if err := validateSpaces(opts.Spaces); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

func buildSnapshot(profiles map[string]*DeveloperProfile, opts Options) *Snapshot {
	stats := ComputeStatistics(profiles)

	ids := make([]string, 0, len(profiles))
	vectors := make(map[string][]Vector, len(profiles))
	for id, p := range profiles {
		ids = append(ids, id)
		vs := make([]Vector, len(opts.Spaces))
		for i, space := range opts.Spaces {
			vs[i] = space.Build(p, stats)
		}
		vectors[id] = vs
	}
	sort.Strings(ids)

	return &Snapshot{
		profiles: profiles,
		ids:      ids,
		stats:    stats,
		spaces:   opts.Spaces,
		vectors:  vectors,
		workers:  opts.Workers,
	}
}

// Profile returns the profile of a developer
func (s *Snapshot) Profile(id string) (*DeveloperProfile, bool) {
	p, ok := s.profiles[NormalizeDeveloperID(id)]
	return p, ok
}

// Developers returns all developer ids in ascending order
func (s *Snapshot) Developers() []string {
	return s.ids
}

// Statistics returns the corpus statistics of the snapshot
func (s *Snapshot) Statistics() *CorpusStatistics {
	return s.stats
}

// Report returns the aggregation summary the snapshot was built with
func (s *Snapshot) Report() AggregateReport {
	return s.report
}

// Vector returns the vector of a developer in the named space
func (s *Snapshot) Vector(id, space string) (Vector, bool) {
	vs, ok := s.vectors[NormalizeDeveloperID(id)]
	if !ok {
		return Vector{}, false
	}
	for i, sp := range s.spaces {
		if sp.Name == space {
			return vs[i], true
		}
	}
	return Vector{}, false
}

// Score returns the combined similarity of two developers and the
// unweighted score of each feature space.
func (s *Snapshot) Score(a, b string) (float64, map[string]float64, error) {
	aID, bID := NormalizeDeveloperID(a), NormalizeDeveloperID(b)
	if aID == bID {
		return 0, nil, apperrors.NewValidationError("a developer is never scored against itself", aID)
	}
	av, ok := s.vectors[aID]
	if !ok {
		return 0, nil, apperrors.NewNotFoundError("developer", a)
	}
	bv, ok := s.vectors[bID]
	if !ok {
		return 0, nil, apperrors.NewNotFoundError("developer", b)
	}

	scores := s.spaceScores(av, bv)
	return combine(s.spaces, scores), s.componentMap(scores), nil
}

func (s *Snapshot) spaceScores(a, b []Vector) []float64 {
	scores := make([]float64, len(s.spaces))
	for i := range s.spaces {
		scores[i] = Cosine(a[i], b[i])
	}
	return scores
}

func (s *Snapshot) componentMap(scores []float64) map[string]float64 {
	m := make(map[string]float64, len(scores))
	for i, space := range s.spaces {
		m[space.Name] = scores[i]
	}
	return m
}

// ValidateQuery rejects non-positive limits before any work is done
func ValidateQuery(q Query) error {
	if q.Limit <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("limit must be positive, got %d", q.Limit), "limit")
	}
	if q.TopSize <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("top_size must be positive, got %d", q.TopSize), "top_size")
	}
	return nil
}

// Search ranks every other developer against the query developer
func (s *Snapshot) Search(ctx context.Context, q Query) ([]SimilarityResult, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	queryID := NormalizeDeveloperID(q.DeveloperID)
	queryVectors, ok := s.vectors[queryID]
	if !ok {
		return nil, apperrors.NewNotFoundError("developer", q.DeveloperID)
	}

	ranked, err := s.rank(ctx, queryID, queryVectors, q.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]SimilarityResult, 0, len(ranked))
	for _, c := range ranked {
		results = append(results, s.explain(queryID, queryVectors, c, q.TopSize))
	}
	return results, nil
}
