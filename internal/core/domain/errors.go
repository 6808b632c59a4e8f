package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted means every fetched candidate was reviewed and
	// rejected; there is nothing left to select.
	ErrPoolExhausted = errors.New("candidate pool exhausted")

	// ErrNoCandidates means the source produced an empty pool on fill.
	ErrNoCandidates = errors.New("no candidates available")
)

// IsTerminal reports whether a generation error must not consume further
// retry attempts. Pool exhaustion cannot be cured by retrying.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrNoCandidates)
}

// AttemptsExhaustedError is returned when a gated stage burns its whole
// retry budget without producing an accepted artifact.
type AttemptsExhaustedError struct {
	Stage        Stage
	Attempts     int
	LastFeedback string
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("%s rejected after %d attempts", e.Stage, e.Attempts)
}

// FinalReviewError is the terminal rejection of an assembled unit. The
// final review has no retry budget.
type FinalReviewError struct {
	Score    int
	Feedback string
}

func (e *FinalReviewError) Error() string {
	return fmt.Sprintf("final review rejected (score %d/%d): %s", e.Score, MaxScore, e.Feedback)
}
