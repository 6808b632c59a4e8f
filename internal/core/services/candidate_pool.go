package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"shortforge/internal/core/domain"
	"shortforge/internal/core/ports"
)

// CandidatePool fronts a TopicSource with a fetch-once, best-first queue.
// The pool fills lazily on the first SelectNext call and is never refilled;
// each call consumes the best remaining candidate.
type CandidatePool struct {
	logger      *slog.Logger
	source      ports.TopicSource
	contentType domain.ContentType
	limit       int
	items       []domain.Candidate
	filled      bool
}

func NewCandidatePool(logger *slog.Logger, source ports.TopicSource, ct domain.ContentType, limit int) *CandidatePool {
	return &CandidatePool{
		logger:      logger,
		source:      source,
		contentType: ct,
		limit:       limit,
	}
}

// SelectNext returns the highest-scored candidate not yet consumed. It
// returns ErrNoCandidates when the fill produced nothing and
// ErrPoolExhausted when every filled candidate has been consumed.
func (p *CandidatePool) SelectNext(ctx context.Context) (domain.Candidate, error) {
	var zero domain.Candidate

	if !p.filled {
		candidates, err := p.source.FetchCandidates(ctx, p.contentType, p.limit)
		if err != nil {
			return zero, fmt.Errorf("fetch candidates: %w", err)
		}
		if len(candidates) == 0 {
			return zero, domain.ErrNoCandidates
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})
		p.items = candidates
		p.filled = true
		p.logger.Info("candidate pool filled", "content_type", p.contentType, "count", len(candidates))
	}

	if len(p.items) == 0 {
		return zero, domain.ErrPoolExhausted
	}

	next := p.items[0]
	p.items = p.items[1:]
	return next, nil
}

// Remaining reports how many candidates are still selectable.
func (p *CandidatePool) Remaining() int {
	return len(p.items)
}

// Discard drops the unconsumed remainder. Called once a candidate is
// accepted so stale topics never leak into later decisions.
func (p *CandidatePool) Discard() {
	p.items = nil
}
