// Package ranking scores candidates against a query and extracts snippets.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
	"github.com/kailas-cloud/taskctx/internal/domain/similarity"
	"github.com/kailas-cloud/taskctx/internal/logger"
	"github.com/kailas-cloud/taskctx/internal/metrics"
)

// MaxConcurrency caps in-flight embedding calls per request.
const MaxConcurrency = 5

// Profile holds the per-flow thresholds and result cap.
type Profile struct {
	TaskThreshold       float64
	TranscriptThreshold float64
	Limit               int
}

// Threshold returns the minimum relevance for the given kind. A candidate must exceed it.
func (p Profile) Threshold(kind candidate.Kind) float64 {
	if kind == candidate.KindTranscript {
		return p.TranscriptThreshold
	}
	return p.TaskThreshold
}

// Scored is a candidate with its relevance.
type Scored struct {
	Candidate candidate.Candidate
	Relevance float64
}

// Ranker scores candidates by cosine similarity of their embeddings to the query vector.
type Ranker struct {
	embedder    domain.Embedder
	concurrency int
}

// NewRanker creates a Ranker. concurrency is clamped to [1, MaxConcurrency].
func NewRanker(embedder domain.Embedder, concurrency int) *Ranker {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	return &Ranker{embedder: embedder, concurrency: concurrency}
}

// Rank embeds each candidate, keeps those above the profile threshold and returns them
// sorted by relevance, ties in input order, truncated to the profile limit.
// A candidate whose embedding or scoring fails is logged and skipped.
// The only error is cancellation of ctx.
func (r *Ranker) Rank(
	ctx context.Context, query []float32, cands []candidate.Candidate, p Profile,
) ([]Scored, error) {
	scores := make([]float64, len(cands))
	ok := make([]bool, len(cands))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i := range cands {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			scores[i], ok[i] = r.score(ctx, query, &cands[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	out := make([]Scored, 0, len(cands))
	for i := range cands {
		kind := string(cands[i].Kind())
		if !ok[i] {
			metrics.CandidatesTotal.WithLabelValues(kind, "skipped").Inc()
			continue
		}
		if scores[i] <= p.Threshold(cands[i].Kind()) {
			metrics.CandidatesTotal.WithLabelValues(kind, "below_threshold").Inc()
			continue
		}
		metrics.CandidatesTotal.WithLabelValues(kind, "kept").Inc()
		out = append(out, Scored{Candidate: cands[i], Relevance: scores[i]})
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Relevance > out[b].Relevance })

	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (r *Ranker) score(ctx context.Context, query []float32, c *candidate.Candidate) (float64, bool) {
	text := c.EmbeddingText()
	if text == "" {
		return 0, false
	}

	log := logger.FromContext(ctx).With(
		zap.String("kind", string(c.Kind())),
		zap.String("id", c.ID()),
	)

	res, err := r.embedder.Embed(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("Candidate embedding failed, skipping", zap.Error(err))
		}
		return 0, false
	}

	sim, err := similarity.Cosine(query, res.Embedding)
	if err != nil {
		log.Warn("Candidate scoring failed, skipping", zap.Error(err))
		return 0, false
	}
	return sim, true
}
