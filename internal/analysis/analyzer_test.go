package analysis

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioEvidence() []types.Evidence {
	return []types.Evidence{
		{DeveloperID: "a@x", RepositoryID: "r1", Language: "python", Identifiers: []string{"foo", "bar"}},
		{DeveloperID: "b@x", RepositoryID: "r1", Language: "python", Identifiers: []string{"foo", "baz"}},
		{DeveloperID: "c@x", RepositoryID: "r2", Language: "go", Identifiers: []string{"qux"}},
	}
}

func newTestSnapshot(t *testing.T, records []types.Evidence) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(records, DefaultOptions())
	require.NoError(t, err)
	return snap
}

func TestSnapshot_Search(t *testing.T) {
	snap := newTestSnapshot(t, scenarioEvidence())

	results, err := snap.Search(context.Background(), Query{DeveloperID: "a@x", Limit: 2, TopSize: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)

	b, c := results[0], results[1]
	assert.Equal(t, "b@x", b.DeveloperID)
	assert.Equal(t, "c@x", c.DeveloperID)

	assert.Greater(t, b.Score, 0.0)
	assert.Greater(t, b.Score, c.Score)
	assert.InDelta(t, 1.0, b.Components[SpaceLanguages], 1e-12)
	assert.Equal(t, 0.0, c.Components[SpaceLanguages])

	foo := math.Log(1.5)
	rare := math.Log(3)
	expectedContent := foo * foo / (foo*foo + rare*rare)
	assert.InDelta(t, expectedContent, b.Components[SpaceIdentifiers], 1e-12)
	assert.InDelta(t, 0.5+0.5*expectedContent, b.Score, 1e-12)

	require.Len(t, b.TopIdentifiers, 1)
	assert.Equal(t, "foo", b.TopIdentifiers[0].Name)
	require.Len(t, b.TopLanguages, 1)
	assert.Equal(t, "python", b.TopLanguages[0].Name)
	assert.Equal(t, []string{"r1"}, b.SharedRepositories)
	assert.Equal(t, []RepositoryActivity{{Repository: "r1", Files: 1}}, b.TopRepositories)

	assert.Empty(t, c.TopLanguages)
	assert.NotNil(t, c.TopLanguages)
	assert.Empty(t, c.SharedRepositories)
}

func TestSnapshot_SearchErrors(t *testing.T) {
	snap := newTestSnapshot(t, scenarioEvidence())

	tests := []struct {
		name     string
		query    Query
		category apperrors.ErrorCategory
	}{
		{name: "unknown developer", query: Query{DeveloperID: "zzz@x", Limit: 1, TopSize: 1}, category: apperrors.CategoryNotFound},
		{name: "zero limit", query: Query{DeveloperID: "a@x", Limit: 0, TopSize: 1}, category: apperrors.CategoryValidation},
		{name: "negative limit", query: Query{DeveloperID: "a@x", Limit: -1, TopSize: 1}, category: apperrors.CategoryValidation},
		{name: "zero top size", query: Query{DeveloperID: "a@x", Limit: 1, TopSize: 0}, category: apperrors.CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := snap.Search(context.Background(), tt.query)
			require.Error(t, err)
			assert.Nil(t, results)
			assert.True(t, apperrors.Is(err, tt.category), "got %v", err)
		})
	}
}

func TestSnapshot_SearchNormalizesQuery(t *testing.T) {
	snap := newTestSnapshot(t, scenarioEvidence())

	results, err := snap.Search(context.Background(), Query{DeveloperID: "  A@X ", Limit: 5, TopSize: 3})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSnapshot_SearchProperties(t *testing.T) {
	snap := newTestSnapshot(t, sampleEvidence())

	for _, id := range snap.Developers() {
		for _, limit := range []int{1, 2, 10} {
			results, err := snap.Search(context.Background(), Query{DeveloperID: id, Limit: limit, TopSize: 2})
			require.NoError(t, err)

			assert.LessOrEqual(t, len(results), limit)
			for i, r := range results {
				assert.NotEqual(t, id, r.DeveloperID, "query developer must not match itself")
				assert.GreaterOrEqual(t, r.Score, 0.0)
				assert.LessOrEqual(t, r.Score, 1.0)
				assert.LessOrEqual(t, len(r.TopLanguages), 2)
				assert.LessOrEqual(t, len(r.TopIdentifiers), 2)
				if i > 0 {
					prev := results[i-1]
					assert.True(t, prev.Score > r.Score ||
						(prev.Score == r.Score && prev.DeveloperID < r.DeveloperID),
						"results out of order at %d", i)
				}
			}
		}
	}
}

func TestSnapshot_TiesBreakByDeveloperID(t *testing.T) {
	records := []types.Evidence{
		{DeveloperID: "q@x", RepositoryID: "r", Language: "go"},
		{DeveloperID: "z@x", RepositoryID: "r", Language: "go"},
		{DeveloperID: "m@x", RepositoryID: "r", Language: "go"},
		{DeveloperID: "b@x", RepositoryID: "r", Language: "go"},
	}
	snap := newTestSnapshot(t, records)

	results, err := snap.Search(context.Background(), Query{DeveloperID: "q@x", Limit: 2, TopSize: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b@x", results[0].DeveloperID)
	assert.Equal(t, "m@x", results[1].DeveloperID)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestSnapshot_ScoreSymmetric(t *testing.T) {
	snap := newTestSnapshot(t, sampleEvidence())
	ids := snap.Developers()

	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			ab, abComponents, err := snap.Score(a, b)
			require.NoError(t, err)
			ba, baComponents, err := snap.Score(b, a)
			require.NoError(t, err)

			assert.Equal(t, ab, ba, "%s/%s", a, b)
			assert.Equal(t, abComponents, baComponents)
		}
	}

	_, _, err := snap.Score(ids[0], "missing@x")
	assert.True(t, apperrors.Is(err, apperrors.CategoryNotFound))

	_, _, err = snap.Score(ids[0], " "+strings.ToUpper(ids[0]))
	assert.True(t, apperrors.Is(err, apperrors.CategoryValidation))
}

func TestSnapshot_OrderIndependent(t *testing.T) {
	records := sampleEvidence()
	query := Query{DeveloperID: "a@x", Limit: 3, TopSize: 3}

	expected, err := newTestSnapshot(t, records).Search(context.Background(), query)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]types.Evidence(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := newTestSnapshot(t, shuffled).Search(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
}

func TestSnapshot_WorkerCountDoesNotChangeResults(t *testing.T) {
	records := sampleEvidence()
	query := Query{DeveloperID: "e@x", Limit: 4, TopSize: 2}

	var baseline []SimilarityResult
	for _, workers := range []int{1, 2, 3, 16} {
		opts := DefaultOptions()
		opts.Workers = workers
		snap, err := NewSnapshot(records, opts)
		require.NoError(t, err)

		results, err := snap.Search(context.Background(), query)
		require.NoError(t, err)
		if baseline == nil {
			baseline = results
			continue
		}
		assert.Equal(t, baseline, results, "workers=%d", workers)
	}
}

func TestSnapshot_SearchHugeLimit(t *testing.T) {
	snap := newTestSnapshot(t, scenarioEvidence())

	for _, limit := range []int{1 << 40, math.MaxInt} {
		results, err := snap.Search(context.Background(), Query{DeveloperID: "a@x", Limit: limit, TopSize: math.MaxInt})
		require.NoError(t, err, "limit=%d", limit)
		require.Len(t, results, 2)
		assert.Equal(t, "b@x", results[0].DeveloperID)
		assert.Equal(t, "c@x", results[1].DeveloperID)
	}
}

func TestSnapshot_SearchCancelled(t *testing.T) {
	snap := newTestSnapshot(t, sampleEvidence())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := snap.Search(ctx, Query{DeveloperID: "a@x", Limit: 3, TopSize: 1})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, apperrors.Is(err, apperrors.CategoryCanceled))
}

func TestSnapshot_IDFFloor(t *testing.T) {
	snap := newTestSnapshot(t, sampleEvidence())

	// every sample developer uses "self"
	assert.Equal(t, 0.0, snap.Statistics().IDF("self"))
	for _, id := range snap.Developers() {
		v, ok := snap.Vector(id, SpaceIdentifiers)
		require.True(t, ok)
		assert.Equal(t, 0.0, v.Weight("self"))
		assert.NotContains(t, v.Keys(), "self")
	}
}

func TestSnapshot_CustomFeatureSpace(t *testing.T) {
	repoSpace := FeatureSpace{
		Name:   "repositories",
		Weight: 0.2,
		Build: func(p *DeveloperProfile, _ *CorpusStatistics) Vector {
			weights := make(map[string]float64, len(p.Repositories))
			for repo, n := range p.Repositories {
				weights[repo] = float64(n)
			}
			return NewVector(weights)
		},
	}

	opts := DefaultOptions()
	opts.Spaces = []FeatureSpace{LanguageSpace(0.4), ContentSpace(0.4), repoSpace}
	snap, err := NewSnapshot(scenarioEvidence(), opts)
	require.NoError(t, err)

	score, components, err := snap.Score("a@x", "b@x")
	require.NoError(t, err)
	assert.Len(t, components, 3)
	assert.InDelta(t, 1.0, components["repositories"], 1e-12)
	expected := 0.4*components[SpaceLanguages] + 0.4*components[SpaceIdentifiers] + 0.2*components["repositories"]
	assert.InDelta(t, expected, score, 1e-12)
}

func TestNewSnapshot_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Alpha = 2

	_, err := NewSnapshot(scenarioEvidence(), opts)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryValidation))
}

func TestNewSnapshotFromProfiles(t *testing.T) {
	profiles := map[string]*DeveloperProfile{
		"a@x": {DeveloperID: "a@x", LanguageCounts: map[string]int{"go": 1}, TokenCounts: map[string]int{"x": 1}, Repositories: map[string]int{"r": 1}},
		"b@x": {DeveloperID: "b@x", LanguageCounts: map[string]int{"go": 2}, TokenCounts: map[string]int{"y": 1}, Repositories: map[string]int{"r": 2}},
		"n@x": {DeveloperID: "n@x", LanguageCounts: map[string]int{}, TokenCounts: map[string]int{"x": 4}},
	}

	snap, err := NewSnapshotFromProfiles(profiles, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x", "b@x"}, snap.Developers())
	assert.Equal(t, 1, snap.Report().WithoutLanguage)
}

func TestSnapshot_SingleDeveloper(t *testing.T) {
	snap := newTestSnapshot(t, scenarioEvidence()[:1])

	results, err := snap.Search(context.Background(), Query{DeveloperID: "a@x", Limit: 3, TopSize: 1})
	require.NoError(t, err)
	assert.Empty(t, results)
}
