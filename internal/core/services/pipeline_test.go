package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortforge/internal/core/domain"
)

type fakeWriter struct {
	scriptCalls int
	metaCalls   int
	scriptErrs  []error // consumed per call; nil entry means success
}

func (f *fakeWriter) WriteScript(_ context.Context, _ domain.Candidate) (*domain.Script, error) {
	f.scriptCalls++
	if len(f.scriptErrs) > 0 {
		err := f.scriptErrs[0]
		f.scriptErrs = f.scriptErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.Script{
		Hook: "You won't believe this.",
		Body: "It really happened.",
		CTA:  "And then it got worse.",
		Tone: domain.ToneFunny,
		Scenes: []domain.SceneInfo{
			{Effect: domain.EffectZoomIn, Description: "shocked face"},
			{Effect: domain.EffectStatic, Description: "empty office"},
		},
	}, nil
}

func (f *fakeWriter) GenerateMetadata(_ context.Context, _ *domain.Script, _ domain.Candidate) (*domain.Metadata, error) {
	f.metaCalls++
	return &domain.Metadata{Title: "A Short", Tags: []string{"story"}}, nil
}

type fakeImages struct {
	calls int
	err   error
}

func (f *fakeImages) SynthesizeImages(_ context.Context, scenes []domain.SceneInfo, outputDir string) ([]domain.ImageResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	results := make([]domain.ImageResult, len(scenes))
	for i, s := range scenes {
		results[i] = domain.ImageResult{FilePath: outputDir + "/img.png", Prompt: s.Description, Effect: s.Effect, Index: i}
	}
	return results, nil
}

type fakeVoice struct {
	calls int
}

func (f *fakeVoice) SynthesizeVoice(_ context.Context, _ *domain.Script, outputPath string) (*domain.AudioResult, error) {
	f.calls++
	return &domain.AudioResult{FilePath: outputPath, Duration: 42.5, VoiceID: "adam"}, nil
}

type fakeComposer struct {
	calls int
}

func (f *fakeComposer) Compose(_ context.Context, _ []domain.ImageResult, audio *domain.AudioResult, _ *domain.Script, outputPath string) (*domain.VideoResult, error) {
	f.calls++
	return &domain.VideoResult{FilePath: outputPath, Duration: audio.Duration, Width: 1080, Height: 1920}, nil
}

// fakeGate serves verdicts per stage from queues; an exhausted queue
// approves. Call counts are recorded per stage.
type fakeGate struct {
	calls    map[domain.Stage]int
	verdicts map[domain.Stage][]domain.Verdict
}

func newFakeGate() *fakeGate {
	return &fakeGate{
		calls:    make(map[domain.Stage]int),
		verdicts: make(map[domain.Stage][]domain.Verdict),
	}
}

func (f *fakeGate) next(stage domain.Stage) (domain.Verdict, error) {
	f.calls[stage]++
	queue := f.verdicts[stage]
	if len(queue) == 0 {
		return domain.Verdict{Result: domain.LabelApproved, Score: 8}, nil
	}
	v := queue[0]
	f.verdicts[stage] = queue[1:]
	return v, nil
}

func (f *fakeGate) totalCalls() int {
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeGate) ReviewTopic(_ context.Context, _ domain.Candidate) (domain.Verdict, error) {
	return f.next(domain.StageTopic)
}
func (f *fakeGate) ReviewScript(_ context.Context, _ *domain.Script, _ domain.Candidate) (domain.Verdict, error) {
	return f.next(domain.StageScript)
}
func (f *fakeGate) ReviewImages(_ context.Context, _ []domain.ImageResult, _ *domain.Script) (domain.Verdict, error) {
	return f.next(domain.StageImages)
}
func (f *fakeGate) ReviewAudio(_ context.Context, _ *domain.AudioResult, _ *domain.Script) (domain.Verdict, error) {
	return f.next(domain.StageAudio)
}
func (f *fakeGate) FinalReview(_ context.Context, _ *domain.ShortUnit) (domain.Verdict, error) {
	return f.next(domain.StageFinalReview)
}

type fakeUploader struct {
	calls int
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, _ *domain.VideoResult, _ *domain.Metadata) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "yt-video-id", nil
}

type pipelineFixture struct {
	topics   *fakeTopicSource
	writer   *fakeWriter
	images   *fakeImages
	voice    *fakeVoice
	composer *fakeComposer
	gate     *fakeGate
	uploader *fakeUploader
}

func newFixture() *pipelineFixture {
	return &pipelineFixture{
		topics: &fakeTopicSource{candidates: []domain.Candidate{
			{Title: "top story", Score: 90},
			{Title: "second story", Score: 70},
			{Title: "third story", Score: 50},
		}},
		writer:   &fakeWriter{},
		images:   &fakeImages{},
		voice:    &fakeVoice{},
		composer: &fakeComposer{},
		gate:     newFakeGate(),
		uploader: &fakeUploader{},
	}
}

func (fx *pipelineFixture) pipeline(t *testing.T, opts PipelineOptions) *Pipeline {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	return NewPipeline(testLogger(), opts, fx.topics, fx.writer, fx.images, fx.voice, fx.composer, fx.gate, fx.uploader, NewEventBus(testLogger()))
}

func TestPipeline_FastModeEndToEnd(t *testing.T) {
	fx := newFixture()
	p := fx.pipeline(t, PipelineOptions{Strict: false})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.NoError(t, err)

	assert.Equal(t, domain.UnitStateDone, unit.State)
	assert.Equal(t, "top story", unit.Topic.Title)
	assert.NotNil(t, unit.Script)
	assert.NotNil(t, unit.Metadata)
	assert.Len(t, unit.Images, 2)
	assert.NotNil(t, unit.Audio)
	assert.NotNil(t, unit.Video)
	assert.NotNil(t, unit.CompletedAt)
	assert.Empty(t, unit.Error)

	assert.Equal(t, 0, fx.gate.totalCalls(), "fast mode must never invoke the gate")

	for _, stage := range []domain.Stage{domain.StageTopic, domain.StageScript, domain.StageImages, domain.StageAudio} {
		assert.Equal(t, 1, unit.Attempts[stage], "stage %s", stage)
	}
}

func TestPipeline_StrictTopicRejectionsConsumePool(t *testing.T) {
	fx := newFixture()
	fx.gate.verdicts[domain.StageTopic] = []domain.Verdict{
		{Result: domain.LabelRejected, Score: 3},
		{Result: domain.LabelNeedsRevision, Score: 5},
		{Result: domain.LabelApproved, Score: 9},
	}
	p := fx.pipeline(t, PipelineOptions{Strict: true})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.NoError(t, err)

	assert.Equal(t, domain.UnitStateDone, unit.State)
	assert.Equal(t, "third story", unit.Topic.Title, "rejections must walk down the score order")
	assert.Equal(t, 3, unit.Attempts[domain.StageTopic])
	assert.Equal(t, 3, fx.gate.calls[domain.StageTopic])
}

func TestPipeline_TopicPoolExhausted(t *testing.T) {
	fx := newFixture()
	fx.topics.candidates = fx.topics.candidates[:2]
	fx.gate.verdicts[domain.StageTopic] = []domain.Verdict{
		{Result: domain.LabelRejected, Score: 2},
		{Result: domain.LabelRejected, Score: 2},
	}
	p := fx.pipeline(t, PipelineOptions{Strict: true})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	assert.Equal(t, domain.UnitStateFailed, unit.State)
	assert.Equal(t, 0, fx.writer.scriptCalls, "failure must short-circuit later stages")
}

func TestPipeline_FinalReviewRejectionIsTerminal(t *testing.T) {
	fx := newFixture()
	fx.gate.verdicts[domain.StageFinalReview] = []domain.Verdict{
		{Result: domain.LabelRejected, Score: 3, Feedback: "package does not hold together"},
	}
	p := fx.pipeline(t, PipelineOptions{Strict: true})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.Error(t, err)

	var final *domain.FinalReviewError
	require.ErrorAs(t, err, &final)
	assert.Equal(t, domain.UnitStateFailed, unit.State)
	assert.Contains(t, unit.Error, "final review")
	assert.Equal(t, 0, fx.composer.calls, "no video after a final review rejection")
	assert.Equal(t, 1, fx.gate.calls[domain.StageFinalReview], "final review has no retry budget")
	assert.Equal(t, 0, fx.uploader.calls)
}

func TestPipeline_ImagesFatalShortCircuits(t *testing.T) {
	fx := newFixture()
	fx.images.err = errors.New("webui unreachable")
	p := fx.pipeline(t, PipelineOptions{Strict: true, MaxAttempts: 3})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.Error(t, err)

	var exhausted *domain.AttemptsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, domain.StageImages, exhausted.Stage)

	assert.Equal(t, domain.UnitStateFailed, unit.State)
	assert.Equal(t, 3, fx.images.calls, "generation errors consume the full budget")
	assert.Equal(t, 3, unit.Attempts[domain.StageImages])
	assert.Equal(t, 0, fx.voice.calls)
	assert.Equal(t, 0, fx.gate.calls[domain.StageAudio])
	assert.Equal(t, 0, fx.gate.calls[domain.StageFinalReview])
	assert.Equal(t, 0, fx.composer.calls)

	// Artifacts accepted before the failure stay on the unit.
	assert.NotNil(t, unit.Topic)
	assert.NotNil(t, unit.Script)
}

func TestPipeline_ImageAcceptFloor(t *testing.T) {
	fx := newFixture()
	fx.gate.verdicts[domain.StageImages] = []domain.Verdict{
		{Result: domain.LabelNeedsRevision, Score: 6, Feedback: "usable but flat"},
	}
	p := fx.pipeline(t, PipelineOptions{Strict: true, ImageAcceptFloor: 6})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStateDone, unit.State)
	assert.Equal(t, 1, unit.Attempts[domain.StageImages])
}

func TestPipeline_SkipStagesBypassesOneGate(t *testing.T) {
	fx := newFixture()
	p := fx.pipeline(t, PipelineOptions{
		Strict:     true,
		SkipStages: map[domain.Stage]bool{domain.StageScript: true},
	})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStateDone, unit.State)
	assert.Equal(t, 0, fx.gate.calls[domain.StageScript])
	assert.Equal(t, 1, fx.gate.calls[domain.StageTopic], "other gates stay on")
	assert.Equal(t, 1, fx.gate.calls[domain.StageFinalReview])
}

func TestPipeline_UploadAfterDone(t *testing.T) {
	fx := newFixture()
	p := fx.pipeline(t, PipelineOptions{Strict: false})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.uploader.calls)
	assert.Equal(t, "yt-video-id", unit.YouTubeID)
}

func TestPipeline_UploadFailureDoesNotFailUnit(t *testing.T) {
	fx := newFixture()
	fx.uploader.err = errors.New("quota exceeded")
	p := fx.pipeline(t, PipelineOptions{Strict: false})

	unit, err := p.Run(context.Background(), domain.ContentTypeRedditStory)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStateDone, unit.State)
	assert.Empty(t, unit.YouTubeID)
}

func TestPipeline_BatchContinuesPastFailures(t *testing.T) {
	fx := newFixture()
	// Unit 2's script generation always fails; units 1 and 3 are fine.
	fx.writer.scriptErrs = []error{
		nil,
		errors.New("llm down"), errors.New("llm down"), errors.New("llm down"),
		nil,
	}
	p := fx.pipeline(t, PipelineOptions{Strict: false, MaxAttempts: 3})

	units := p.RunBatch(context.Background(), domain.ContentTypeRedditStory, 3)
	require.Len(t, units, 3)

	assert.Equal(t, domain.UnitStateDone, units[0].State)
	assert.Equal(t, domain.UnitStateFailed, units[1].State)
	assert.Equal(t, domain.UnitStateDone, units[2].State, "a failed unit must not abort the batch")
}

func TestPipeline_BatchStopsOnCancellation(t *testing.T) {
	fx := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := fx.pipeline(t, PipelineOptions{Strict: false})
	units := p.RunBatch(ctx, domain.ContentTypeRedditStory, 5)
	assert.Empty(t, units)
}
