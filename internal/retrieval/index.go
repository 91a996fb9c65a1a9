// Package retrieval builds and queries the in-memory vector index over
// the rule catalog. An Index is derived from a catalog once, never
// mutated afterward, and safe for concurrent searches; rebuilding
// means constructing a fresh Index and swapping the reference.
package retrieval

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crashlens/crashlens/internal/knowledge"
	"github.com/crashlens/crashlens/pkg/logger"
)

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Entry struct {
	Rule     *knowledge.Rule
	Vector   []float32
	Document string
}

// Candidate is one ranked retrieval result. Score is cosine similarity,
// higher is better.
type Candidate struct {
	Rule  *knowledge.Rule
	Score float64
}

type Index struct {
	entries []Entry
}

// Build embeds every rule's descriptive document and assembles the
// index. Rules whose embedding call fails are logged and left out; a
// partial index is normal operation, not an error. Embedding calls run
// on a bounded worker pool. Only context cancellation aborts the build.
func Build(ctx context.Context, catalog *knowledge.Catalog, embed Embedder, workers int) (*Index, error) {
	if workers <= 0 {
		workers = 4
	}

	rules := catalog.Rules()
	vectors := make([][]float32, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range rules {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := embed.Embed(gctx, rules[i].Document())
			if err != nil {
				logger.Warn("Rule excluded from retrieval index",
					zap.String("rule_id", rules[i].ID),
					zap.Error(err),
				)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Catalog order is preserved so that equal-score candidates rank by
	// rule priority.
	entries := make([]Entry, 0, len(rules))
	for i := range rules {
		if vectors[i] == nil {
			continue
		}
		entries = append(entries, Entry{
			Rule:     &rules[i],
			Vector:   vectors[i],
			Document: rules[i].Document(),
		})
	}

	logger.Info("Retrieval index built",
		zap.Int("rules", len(rules)),
		zap.Int("indexed", len(entries)),
	)

	return &Index{entries: entries}, nil
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

// Search returns up to k candidates ranked by cosine similarity to the
// query, descending; ties keep catalog order. An empty index yields an
// empty result without touching the embedding backend.
func (idx *Index) Search(ctx context.Context, query string, k int, embed Embedder) ([]Candidate, error) {
	if len(idx.entries) == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := embed.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(idx.entries))
	for i := range idx.entries {
		candidates = append(candidates, Candidate{
			Rule:  idx.entries[i].Rule,
			Score: CosineSimilarity(queryVec, idx.entries[i].Vector),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// CosineSimilarity is defined for every pair of vectors: mismatched
// lengths compare over the shorter prefix and a zero-norm vector has
// similarity 0, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
