package ports

import (
	"context"

	"shortforge/internal/core/domain"
)

// TextGenerator abstracts the chat-completion backend used by the script
// writer and the quality gate.
type TextGenerator interface {
	// GenerateText sends one system+user exchange and returns the raw
	// completion text.
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// TopicSource fetches topic candidates for a content type. An empty result
// with a nil error is valid; the pool turns it into ErrNoCandidates.
type TopicSource interface {
	FetchCandidates(ctx context.Context, ct domain.ContentType, limit int) ([]domain.Candidate, error)
}

// ScriptWriter turns an accepted topic into narration and publishing copy.
type ScriptWriter interface {
	// WriteScript generates the full narration plus the scene plan. A
	// response that cannot be parsed into hook and body is an error.
	WriteScript(ctx context.Context, topic domain.Candidate) (*domain.Script, error)

	// GenerateMetadata produces the title, description and tags for an
	// already accepted script.
	GenerateMetadata(ctx context.Context, script *domain.Script, topic domain.Candidate) (*domain.Metadata, error)
}

// ImageSynthesizer renders one image per scene into outputDir. Individual
// scene failures are tolerated; a fully empty result is an error.
type ImageSynthesizer interface {
	SynthesizeImages(ctx context.Context, scenes []domain.SceneInfo, outputDir string) ([]domain.ImageResult, error)
}

// VoiceSynthesizer narrates the script to an audio file at outputPath.
type VoiceSynthesizer interface {
	SynthesizeVoice(ctx context.Context, script *domain.Script, outputPath string) (*domain.AudioResult, error)
}

// VideoComposer assembles images and narration into the final vertical
// video at outputPath.
type VideoComposer interface {
	Compose(ctx context.Context, images []domain.ImageResult, audio *domain.AudioResult, script *domain.Script, outputPath string) (*domain.VideoResult, error)
}

// QualityGate reviews stage artifacts. Implementations return a Verdict
// even for harsh rejections; an error means the review itself failed.
type QualityGate interface {
	ReviewTopic(ctx context.Context, c domain.Candidate) (domain.Verdict, error)
	ReviewScript(ctx context.Context, s *domain.Script, topic domain.Candidate) (domain.Verdict, error)
	ReviewImages(ctx context.Context, images []domain.ImageResult, s *domain.Script) (domain.Verdict, error)
	ReviewAudio(ctx context.Context, a *domain.AudioResult, s *domain.Script) (domain.Verdict, error)
	FinalReview(ctx context.Context, unit *domain.ShortUnit) (domain.Verdict, error)
}

// Uploader publishes a finished video. Returns the remote video ID.
type Uploader interface {
	Upload(ctx context.Context, video *domain.VideoResult, meta *domain.Metadata) (string, error)
}
