package services

import (
	"context"
	"log/slog"
	"time"

	"shortforge/internal/core/domain"
)

// GenerateFunc produces one candidate artifact for a stage.
type GenerateFunc[T any] func(ctx context.Context) (T, error)

// GradeFunc reviews a candidate artifact. A nil GradeFunc on the spec means
// the gate is disabled and the first successful generation is accepted.
type GradeFunc[T any] func(ctx context.Context, artifact T) (domain.Verdict, error)

// StageSpec describes one gated stage run.
type StageSpec[T any] struct {
	Stage       domain.Stage
	MaxAttempts int
	// AcceptFloor, when positive, accepts a non-approved verdict whose
	// score is at or above the floor.
	AcceptFloor int
	Timeout     time.Duration
	Generate    GenerateFunc[T]
	Grade       GradeFunc[T]
}

// RunStage drives the generate/grade loop for one stage. Generation errors
// and grade rejections both consume one attempt. Grade errors count as
// rejections. The artifact is discarded on every rejection; only an
// accepted artifact is returned. The second return value is the number of
// attempts consumed.
func RunStage[T any](ctx context.Context, logger *slog.Logger, bus *EventBus, unitID domain.UnitID, spec StageSpec[T]) (T, int, error) {
	var zero T
	var lastFeedback string

	if bus != nil {
		bus.Publish(Event{UnitID: unitID, Type: EventStageStarted, Stage: spec.Stage})
	}

	attempts := 0
	for attempts < spec.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return zero, attempts, err
		}
		attempts++

		artifact, err := callWithTimeout(ctx, spec.Timeout, spec.Generate)
		if err != nil {
			if domain.IsTerminal(err) {
				logger.Error("stage cannot continue", "stage", spec.Stage, "attempt", attempts, "error", err)
				return zero, attempts, err
			}
			logger.Warn("stage generation failed", "stage", spec.Stage, "attempt", attempts, "error", err)
			if bus != nil {
				bus.Publish(Event{UnitID: unitID, Type: EventAttemptError, Stage: spec.Stage, Attempt: attempts, Detail: err.Error()})
			}
			lastFeedback = err.Error()
			continue
		}

		if spec.Grade == nil {
			if bus != nil {
				bus.Publish(Event{UnitID: unitID, Type: EventStageCompleted, Stage: spec.Stage, Attempt: attempts})
			}
			return artifact, attempts, nil
		}

		verdict, err := callWithTimeout(ctx, spec.Timeout, func(ctx context.Context) (domain.Verdict, error) {
			return spec.Grade(ctx, artifact)
		})
		if err != nil {
			logger.Warn("stage review failed, treating as rejection", "stage", spec.Stage, "attempt", attempts, "error", err)
			if bus != nil {
				bus.Publish(Event{UnitID: unitID, Type: EventAttemptError, Stage: spec.Stage, Attempt: attempts, Detail: err.Error()})
			}
			lastFeedback = err.Error()
			continue
		}

		if verdict.Approved() {
			logger.Info("stage approved", "stage", spec.Stage, "attempt", attempts, "score", verdict.Score)
			if bus != nil {
				bus.Publish(Event{UnitID: unitID, Type: EventStageCompleted, Stage: spec.Stage, Attempt: attempts})
			}
			return artifact, attempts, nil
		}

		if spec.AcceptFloor > 0 && verdict.Score >= spec.AcceptFloor {
			logger.Info("stage accepted above floor", "stage", spec.Stage, "attempt", attempts,
				"score", verdict.Score, "floor", spec.AcceptFloor)
			if bus != nil {
				bus.Publish(Event{UnitID: unitID, Type: EventStageCompleted, Stage: spec.Stage, Attempt: attempts})
			}
			return artifact, attempts, nil
		}

		logger.Info("stage rejected", "stage", spec.Stage, "attempt", attempts,
			"score", verdict.Score, "feedback", verdict.Feedback)
		if bus != nil {
			bus.Publish(Event{UnitID: unitID, Type: EventAttemptRejected, Stage: spec.Stage, Attempt: attempts, Detail: verdict.Feedback})
		}
		lastFeedback = verdict.Feedback
	}

	return zero, attempts, &domain.AttemptsExhaustedError{
		Stage:        spec.Stage,
		Attempts:     attempts,
		LastFeedback: lastFeedback,
	}
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(tctx)
}
