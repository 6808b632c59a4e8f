package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shortforge/internal/core/domain"
	"shortforge/internal/core/ports"
)

// PipelineOptions tune one pipeline instance. Zero values fall back to the
// reference behavior via Normalize.
type PipelineOptions struct {
	// Strict enables the quality gates. Fast mode (false) never invokes
	// the gate, including the final review.
	Strict bool
	// MaxAttempts is the per-stage retry budget for gated stages.
	MaxAttempts int
	// ImageAcceptFloor accepts a non-approved image verdict at or above
	// this score.
	ImageAcceptFloor int
	// CandidateLimit is how many topic candidates the pool fetches.
	CandidateLimit int
	// StageTimeout bounds every generator and grader call. Expiry counts
	// as a generation error and consumes an attempt.
	StageTimeout time.Duration
	// SkipStages disables the gate for individual stages while strict
	// mode stays on elsewhere.
	SkipStages map[domain.Stage]bool
	// OutputDir is the root under which each unit gets its own directory.
	OutputDir string
}

// Normalize fills unset options with the reference defaults.
func (o PipelineOptions) Normalize() PipelineOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.ImageAcceptFloor <= 0 {
		o.ImageAcceptFloor = 6
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = 5
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = 2 * time.Minute
	}
	if o.OutputDir == "" {
		o.OutputDir = "output"
	}
	return o
}

// Pipeline drives one ShortUnit through the gated stage sequence. It is the
// sole owner of the unit; collaborators only see values.
type Pipeline struct {
	logger   *slog.Logger
	opts     PipelineOptions
	topics   ports.TopicSource
	writer   ports.ScriptWriter
	images   ports.ImageSynthesizer
	voice    ports.VoiceSynthesizer
	composer ports.VideoComposer
	gate     ports.QualityGate
	uploader ports.Uploader // optional, nil disables uploads
	bus      *EventBus
}

func NewPipeline(
	logger *slog.Logger,
	opts PipelineOptions,
	topics ports.TopicSource,
	writer ports.ScriptWriter,
	images ports.ImageSynthesizer,
	voice ports.VoiceSynthesizer,
	composer ports.VideoComposer,
	gate ports.QualityGate,
	uploader ports.Uploader,
	bus *EventBus,
) *Pipeline {
	return &Pipeline{
		logger:   logger,
		opts:     opts.Normalize(),
		topics:   topics,
		writer:   writer,
		images:   images,
		voice:    voice,
		composer: composer,
		gate:     gate,
		uploader: uploader,
		bus:      bus,
	}
}

// Run produces one short. On failure the returned unit is in the Failed
// state with Error set and the error is non-nil; artifacts accepted before
// the failure stay on the unit for inspection.
func (p *Pipeline) Run(ctx context.Context, contentType domain.ContentType) (*domain.ShortUnit, error) {
	unit := domain.NewShortUnit(contentType)
	logger := p.logger.With("unit_id", unit.ID, "content_type", contentType)

	runDir := filepath.Join(p.opts.OutputDir, string(unit.ID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return p.fail(unit, fmt.Errorf("create run directory: %w", err))
	}

	logger.Info("unit started", "strict", p.opts.Strict, "run_dir", runDir)
	p.bus.Publish(Event{UnitID: unit.ID, Type: EventUnitStarted, Detail: string(contentType)})

	// Topic selection. Rejections pop the next pool candidate instead of
	// regenerating, so the retry budget doubles as the rejection budget.
	unit.State = domain.UnitStateTopicPending
	pool := NewCandidatePool(logger, p.topics, contentType, p.opts.CandidateLimit)
	topic, attempts, err := RunStage(ctx, logger, p.bus, unit.ID, StageSpec[domain.Candidate]{
		Stage:       domain.StageTopic,
		MaxAttempts: p.opts.MaxAttempts,
		Timeout:     p.opts.StageTimeout,
		Generate:    pool.SelectNext,
		Grade: gradeFn(p, domain.StageTopic, func(ctx context.Context, c domain.Candidate) (domain.Verdict, error) {
			return p.gate.ReviewTopic(ctx, c)
		}),
	})
	unit.Attempts[domain.StageTopic] = attempts
	if err != nil {
		return p.fail(unit, err)
	}
	pool.Discard()
	unit.Topic = &topic
	logger.Info("topic accepted", "title", topic.Title, "source", topic.Source)

	// Script writing.
	unit.State = domain.UnitStateScriptPending
	script, attempts, err := RunStage(ctx, logger, p.bus, unit.ID, StageSpec[*domain.Script]{
		Stage:       domain.StageScript,
		MaxAttempts: p.opts.MaxAttempts,
		Timeout:     p.opts.StageTimeout,
		Generate: func(ctx context.Context) (*domain.Script, error) {
			return p.writer.WriteScript(ctx, topic)
		},
		Grade: gradeFn(p, domain.StageScript, func(ctx context.Context, s *domain.Script) (domain.Verdict, error) {
			return p.gate.ReviewScript(ctx, s, topic)
		}),
	})
	unit.Attempts[domain.StageScript] = attempts
	if err != nil {
		return p.fail(unit, err)
	}
	unit.Script = script
	logger.Info("script accepted", "words", script.WordCount(), "scenes", len(script.Scenes), "tone", script.Tone)

	meta, err := p.writer.GenerateMetadata(ctx, script, topic)
	if err != nil {
		return p.fail(unit, fmt.Errorf("generate metadata: %w", err))
	}
	unit.Metadata = meta

	// Image synthesis. The floor accepts mediocre but usable image sets.
	unit.State = domain.UnitStateImagesPending
	imagesDir := filepath.Join(runDir, "images")
	images, attempts, err := RunStage(ctx, logger, p.bus, unit.ID, StageSpec[[]domain.ImageResult]{
		Stage:       domain.StageImages,
		MaxAttempts: p.opts.MaxAttempts,
		AcceptFloor: p.opts.ImageAcceptFloor,
		Timeout:     p.opts.StageTimeout,
		Generate: func(ctx context.Context) ([]domain.ImageResult, error) {
			return p.images.SynthesizeImages(ctx, script.Scenes, imagesDir)
		},
		Grade: gradeFn(p, domain.StageImages, func(ctx context.Context, imgs []domain.ImageResult) (domain.Verdict, error) {
			return p.gate.ReviewImages(ctx, imgs, script)
		}),
	})
	unit.Attempts[domain.StageImages] = attempts
	if err != nil {
		return p.fail(unit, err)
	}
	unit.Images = images
	logger.Info("images accepted", "count", len(images))

	// Voice synthesis.
	unit.State = domain.UnitStateAudioPending
	audioPath := filepath.Join(runDir, "narration.mp3")
	audio, attempts, err := RunStage(ctx, logger, p.bus, unit.ID, StageSpec[*domain.AudioResult]{
		Stage:       domain.StageAudio,
		MaxAttempts: p.opts.MaxAttempts,
		Timeout:     p.opts.StageTimeout,
		Generate: func(ctx context.Context) (*domain.AudioResult, error) {
			return p.voice.SynthesizeVoice(ctx, script, audioPath)
		},
		Grade: gradeFn(p, domain.StageAudio, func(ctx context.Context, a *domain.AudioResult) (domain.Verdict, error) {
			return p.gate.ReviewAudio(ctx, a, script)
		}),
	})
	unit.Attempts[domain.StageAudio] = attempts
	if err != nil {
		return p.fail(unit, err)
	}
	unit.Audio = audio
	logger.Info("audio accepted", "duration", audio.Duration, "voice", audio.VoiceID)

	// Final review: single shot, no retry budget.
	unit.State = domain.UnitStateFinalReviewPending
	if p.gateEnabled(domain.StageFinalReview) {
		verdict, err := callWithTimeout(ctx, p.opts.StageTimeout, func(ctx context.Context) (domain.Verdict, error) {
			return p.gate.FinalReview(ctx, unit)
		})
		if err != nil {
			return p.fail(unit, fmt.Errorf("final review: %w", err))
		}
		if !verdict.Approved() {
			return p.fail(unit, &domain.FinalReviewError{Score: verdict.Score, Feedback: verdict.Feedback})
		}
		logger.Info("final review approved", "score", verdict.Score)
	}

	// Video composition: single generation call, failure is fatal.
	unit.State = domain.UnitStateVideoPending
	videoPath := filepath.Join(runDir, "short.mp4")
	video, err := callWithTimeout(ctx, p.opts.StageTimeout, func(ctx context.Context) (*domain.VideoResult, error) {
		return p.composer.Compose(ctx, images, audio, script, videoPath)
	})
	if err != nil {
		return p.fail(unit, fmt.Errorf("compose video: %w", err))
	}
	unit.Video = video

	unit.State = domain.UnitStateDone
	now := time.Now().UTC()
	unit.CompletedAt = &now
	logger.Info("unit done", "video", video.FilePath, "duration", video.Duration)
	p.bus.Publish(Event{UnitID: unit.ID, Type: EventUnitCompleted, Detail: video.FilePath})

	p.maybeUpload(ctx, logger, unit)
	return unit, nil
}

// RunBatch produces count units strictly sequentially. A failed unit never
// aborts the batch; cancellation does.
func (p *Pipeline) RunBatch(ctx context.Context, contentType domain.ContentType, count int) []*domain.ShortUnit {
	units := make([]*domain.ShortUnit, 0, count)
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			p.logger.Warn("batch cancelled", "completed", len(units), "requested", count)
			break
		}
		unit, err := p.Run(ctx, contentType)
		if err != nil {
			p.logger.Error("unit failed", "unit_id", unit.ID, "index", i+1, "error", err)
		}
		units = append(units, unit)
	}
	return units
}

// gradeFn returns nil when the gate is disabled for the stage, which makes
// the stage runner accept the first successful generation.
func gradeFn[T any](p *Pipeline, stage domain.Stage, review func(context.Context, T) (domain.Verdict, error)) GradeFunc[T] {
	if !p.gateEnabled(stage) {
		return nil
	}
	return review
}

func (p *Pipeline) gateEnabled(stage domain.Stage) bool {
	if !p.opts.Strict || p.gate == nil {
		return false
	}
	return !p.opts.SkipStages[stage]
}

func (p *Pipeline) fail(unit *domain.ShortUnit, err error) (*domain.ShortUnit, error) {
	unit.State = domain.UnitStateFailed
	unit.Error = err.Error()
	now := time.Now().UTC()
	unit.CompletedAt = &now
	p.logger.Error("unit failed", "unit_id", unit.ID, "error", err)
	p.bus.Publish(Event{UnitID: unit.ID, Type: EventUnitFailed, Detail: err.Error()})
	return unit, err
}

// maybeUpload publishes the finished video when an uploader is configured.
// Upload failures are reported but never retroactively fail a Done unit.
func (p *Pipeline) maybeUpload(ctx context.Context, logger *slog.Logger, unit *domain.ShortUnit) {
	if p.uploader == nil || unit.Video == nil {
		return
	}
	videoID, err := p.uploader.Upload(ctx, unit.Video, unit.Metadata)
	if err != nil {
		logger.Error("upload failed", "error", err)
		p.bus.Publish(Event{UnitID: unit.ID, Type: EventUploadFailed, Detail: err.Error()})
		return
	}
	unit.YouTubeID = videoID
	logger.Info("upload completed", "video_id", videoID)
	p.bus.Publish(Event{UnitID: unit.ID, Type: EventUploadCompleted, Detail: videoID})
}
