package analysis

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/simdev/internal/types"
)

// DedupMode controls how repeated evidence for the same file is counted
type DedupMode string

const (
	// DedupFile counts each (developer, repository, file) once, keeping the
	// record with the greatest revision.
	DedupFile DedupMode = "file"
	// DedupCommit counts every record, weighting developers by activity.
	DedupCommit DedupMode = "commit"
)

// ParseDedupMode validates a dedup mode name
func ParseDedupMode(s string) (DedupMode, error) {
	switch DedupMode(strings.ToLower(strings.TrimSpace(s))) {
	case DedupFile, "":
		return DedupFile, nil
	case DedupCommit:
		return DedupCommit, nil
	default:
		return "", fmt.Errorf("unknown dedup mode %q (want %q or %q)", s, DedupFile, DedupCommit)
	}
}

// Skip reasons reported by the aggregator.
const (
	SkipMissingDeveloper    = "missing_developer_id"
	SkipNegativeOccurrences = "negative_occurrences"
)

// SkipHandler is notified about every record the aggregator drops
type SkipHandler func(index int, record types.Evidence, reason string)

// AggregateReport summarizes one aggregation run
type AggregateReport struct {
	Records    int            `json:"records"`
	Accepted   int            `json:"accepted"`
	Duplicates int            `json:"duplicates"`
	Skipped    map[string]int `json:"skipped"`
	// WithoutLanguage counts developers dropped because none of their evidence
	// carried a language tag.
	WithoutLanguage int `json:"without_language"`
	Developers      int `json:"developers"`
}

// SkippedTotal returns the number of skipped records across all reasons
func (r AggregateReport) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Aggregator folds evidence records into developer profiles
type Aggregator struct {
	mode   DedupMode
	onSkip SkipHandler
}

// NewAggregator creates a new aggregator
func NewAggregator(mode DedupMode) *Aggregator {
	if mode == "" {
		mode = DedupFile
	}
	return &Aggregator{
		mode: mode,
		onSkip: func(index int, record types.Evidence, reason string) {
			slog.Warn("Skipped evidence record",
				"index", index,
				"reason", reason,
				"repository_id", record.RepositoryID)
		},
	}
}

// WithSkipHandler replaces the default skipped-record warning
func (a *Aggregator) WithSkipHandler(h SkipHandler) *Aggregator {
	if h != nil {
		a.onSkip = h
	}
	return a
}

// Aggregate builds one profile per developer. The result does not depend on
// the order of records.
func (a *Aggregator) Aggregate(records []types.Evidence) (map[string]*DeveloperProfile, AggregateReport) {
	report := AggregateReport{
		Records: len(records),
		Skipped: make(map[string]int),
	}

	accepted := a.cleanRecords(records, &report)
	if a.mode == DedupFile {
		before := len(accepted)
		accepted = a.removeDuplicates(accepted)
		report.Duplicates = before - len(accepted)
	}
	report.Accepted = len(accepted)

	profiles := make(map[string]*DeveloperProfile)
	files := make(map[string]repositoryFiles)
	for _, rec := range accepted {
		p, ok := profiles[rec.DeveloperID]
		if !ok {
			p = &DeveloperProfile{
				DeveloperID:    rec.DeveloperID,
				Repositories:   make(map[string]int),
				LanguageCounts: make(map[string]int),
				TokenCounts:    make(map[string]int),
			}
			profiles[rec.DeveloperID] = p
		}
		fold(p, rec)
		if rec.RepositoryID != "" && rec.FileID != "" {
			if files[rec.DeveloperID] == nil {
				files[rec.DeveloperID] = make(repositoryFiles)
			}
			files[rec.DeveloperID].add(rec.RepositoryID, rec.FileID)
		}
	}

	// repositories with known file identities report distinct files
	for id, repos := range files {
		for repo, set := range repos {
			profiles[id].Repositories[repo] = len(set)
		}
	}

	for id, p := range profiles {
		if p.TotalLanguageCount() == 0 {
			delete(profiles, id)
			report.WithoutLanguage++
		}
	}
	report.Developers = len(profiles)

	return profiles, report
}

// cleanRecords normalizes identities and drops records that cannot be counted
func (a *Aggregator) cleanRecords(records []types.Evidence, report *AggregateReport) []types.Evidence {
	cleaned := make([]types.Evidence, 0, len(records))
	for i, rec := range records {
		rec.DeveloperID = NormalizeDeveloperID(rec.DeveloperID)
		rec.Language = strings.TrimSpace(rec.Language)

		reason := ""
		switch {
		case rec.DeveloperID == "":
			reason = SkipMissingDeveloper
		case rec.Occurrences < 0:
			reason = SkipNegativeOccurrences
		}
		if reason != "" {
			report.Skipped[reason]++
			a.onSkip(i, rec, reason)
			continue
		}

		cleaned = append(cleaned, rec)
	}
	return cleaned
}

// repositoryFiles is the set of file ids touched per repository
type repositoryFiles map[string]map[string]struct{}

func (r repositoryFiles) add(repo, file string) {
	set, ok := r[repo]
	if !ok {
		set = make(map[string]struct{})
		r[repo] = set
	}
	set[file] = struct{}{}
}

type fileKey struct {
	developer, repository, file string
}

// removeDuplicates keeps one canonical record per file identity. Records
// without a file id are independent occurrences.
func (a *Aggregator) removeDuplicates(records []types.Evidence) []types.Evidence {
	canonical := make(map[fileKey]int)
	kept := make([]types.Evidence, 0, len(records))

	for _, rec := range records {
		if rec.FileID == "" {
			kept = append(kept, rec)
			continue
		}

		key := fileKey{rec.DeveloperID, rec.RepositoryID, rec.FileID}
		idx, seen := canonical[key]
		if !seen {
			canonical[key] = len(kept)
			kept = append(kept, rec)
			continue
		}
		if compareEvidence(rec, kept[idx]) > 0 {
			kept[idx] = rec
		}
	}
	return kept
}

// compareEvidence is a total order over records sharing a file identity:
// revision first, then content, so the canonical pick is order independent.
func compareEvidence(a, b types.Evidence) int {
	if c := strings.Compare(a.Revision, b.Revision); c != 0 {
		return c
	}
	if c := strings.Compare(a.Language, b.Language); c != 0 {
		return c
	}
	if c := a.Weight() - b.Weight(); c != 0 {
		return c
	}
	if c := slices.Compare(sortedSet(a.Identifiers), sortedSet(b.Identifiers)); c != 0 {
		return c
	}
	return slices.Compare(sortedSet(a.Imports), sortedSet(b.Imports))
}

func fold(p *DeveloperProfile, rec types.Evidence) {
	w := rec.Weight()

	if rec.RepositoryID != "" {
		if _, ok := p.Repositories[rec.RepositoryID]; !ok {
			p.Repositories[rec.RepositoryID] = 0
		}
	}
	if rec.Language != "" {
		p.LanguageCounts[rec.Language] += w
		if rec.RepositoryID != "" {
			p.Repositories[rec.RepositoryID] += w
		}
	}

	// identifiers and imports share one token namespace
	for _, tok := range tokenSet(rec) {
		p.TokenCounts[tok] += w
	}
}

func tokenSet(rec types.Evidence) []string {
	all := make([]string, 0, len(rec.Identifiers)+len(rec.Imports))
	all = append(all, rec.Identifiers...)
	all = append(all, rec.Imports...)
	return sortedSet(all)
}

// sortedSet returns the distinct non-empty values of xs in ascending order
func sortedSet(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x != "" {
			out = append(out, x)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
