package topic

import (
	"context"
	"time"

	"shortforge/internal/core/domain"
)

// StaticSource serves a single operator-provided topic. Used when the CLI
// overrides topic discovery with an explicit subject.
type StaticSource struct {
	topic string
}

func NewStaticSource(topic string) *StaticSource {
	return &StaticSource{topic: topic}
}

func (s *StaticSource) FetchCandidates(_ context.Context, ct domain.ContentType, _ int) ([]domain.Candidate, error) {
	return []domain.Candidate{{
		Title:       s.topic,
		Source:      "manual",
		Score:       1,
		Content:     s.topic,
		ContentType: ct,
		FetchedAt:   time.Now().UTC(),
	}}, nil
}
