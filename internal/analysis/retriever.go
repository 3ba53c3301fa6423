package analysis

import (
	"context"
	"sort"

	"github.com/emirpasic/gods/trees/binaryheap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
)

type candidate struct {
	id     string
	score  float64
	scores []float64
}

// worse orders candidates by ascending score, then descending id, so the
// weakest result sits at the top of a min-heap.
func worse(a, b *candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.id > b.id
}

// topK keeps the best limit candidates seen by one worker
type topK struct {
	limit int
	heap  *binaryheap.Heap
}

func newTopK(limit int) *topK {
	return &topK{
		limit: limit,
		heap: binaryheap.NewWith(func(x, y interface{}) int {
			a, b := x.(*candidate), y.(*candidate)
			switch {
			case worse(a, b):
				return -1
			case worse(b, a):
				return 1
			default:
				return 0
			}
		}),
	}
}

func (t *topK) Offer(c *candidate) {
	if t.heap.Size() < t.limit {
		t.heap.Push(c)
		return
	}
	top, _ := t.heap.Peek()
	if worse(top.(*candidate), c) {
		t.heap.Pop()
		t.heap.Push(c)
	}
}

func (t *topK) Values() []*candidate {
	values := t.heap.Values()
	out := make([]*candidate, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*candidate))
	}
	return out
}

// rank scores all candidates on a fixed-size worker pool. Each worker owns its
// heap; heaps are merged only after every worker finished. A cancelled
// context discards everything.
func (s *Snapshot) rank(ctx context.Context, queryID string, queryVectors []Vector, limit int) ([]*candidate, error) {
	candidates := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if id != queryID {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	workers := s.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	chunk := (len(candidates) + workers - 1) / workers

	heaps := make([]*topK, 0, workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < len(candidates); lo += chunk {
		hi := lo + chunk
		if hi > len(candidates) {
			hi = len(candidates)
		}
		part := candidates[lo:hi]
		heap := newTopK(limit)
		heaps = append(heaps, heap)

		g.Go(func() error {
			for _, id := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				scores := s.spaceScores(queryVectors, s.vectors[id])
				heap.Offer(&candidate{
					id:     id,
					score:  combine(s.spaces, scores),
					scores: scores,
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.ToAppError(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.ToAppError(err)
	}

	merged := make([]*candidate, 0, limit*len(heaps))
	for _, h := range heaps {
		merged = append(merged, h.Values()...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return worse(merged[j], merged[i])
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// explain attaches the dimensions and repositories that drive a match
func (s *Snapshot) explain(queryID string, queryVectors []Vector, c *candidate, topSize int) SimilarityResult {
	result := SimilarityResult{
		DeveloperID:        c.id,
		Score:              c.score,
		Components:         s.componentMap(c.scores),
		TopLanguages:       []Contributor{},
		TopIdentifiers:     []Contributor{},
		TopRepositories:    []RepositoryActivity{},
		SharedRepositories: []string{},
	}

	other := s.vectors[c.id]
	for i, space := range s.spaces {
		top := topContributions(Contributions(queryVectors[i], other[i]), topSize)
		switch space.Name {
		case SpaceLanguages:
			result.TopLanguages = top
		case SpaceIdentifiers:
			result.TopIdentifiers = top
		}
	}

	query := s.profiles[queryID]
	match := s.profiles[c.id]
	result.SharedRepositories = sharedRepositories(query, match)
	result.TopRepositories = topRepositories(match, topSize)

	return result
}

func topContributions(contribs []Contributor, n int) []Contributor {
	sort.Slice(contribs, func(i, j int) bool {
		if contribs[i].Contribution != contribs[j].Contribution {
			return contribs[i].Contribution > contribs[j].Contribution
		}
		return contribs[i].Name < contribs[j].Name
	})
	if len(contribs) > n {
		contribs = contribs[:n]
	}
	if contribs == nil {
		return []Contributor{}
	}
	return contribs
}

func sharedRepositories(a, b *DeveloperProfile) []string {
	shared := []string{}
	for repo := range a.Repositories {
		if _, ok := b.Repositories[repo]; ok {
			shared = append(shared, repo)
		}
	}
	sort.Strings(shared)
	return shared
}

func topRepositories(p *DeveloperProfile, n int) []RepositoryActivity {
	repos := make([]RepositoryActivity, 0, len(p.Repositories))
	for repo, files := range p.Repositories {
		repos = append(repos, RepositoryActivity{Repository: repo, Files: files})
	}
	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Files != repos[j].Files {
			return repos[i].Files > repos[j].Files
		}
		return repos[i].Repository < repos[j].Repository
	})
	if len(repos) > n {
		repos = repos[:n]
	}
	return repos
}
