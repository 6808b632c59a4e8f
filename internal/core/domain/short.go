package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type UnitID string
type UnitState string
type Stage string
type ContentType string
type Tone string
type CameraEffect string

const (
	UnitStateTopicPending       UnitState = "topic_pending"
	UnitStateScriptPending      UnitState = "script_pending"
	UnitStateImagesPending      UnitState = "images_pending"
	UnitStateAudioPending       UnitState = "audio_pending"
	UnitStateFinalReviewPending UnitState = "final_review_pending"
	UnitStateVideoPending       UnitState = "video_pending"
	UnitStateDone               UnitState = "done"
	UnitStateFailed             UnitState = "failed"

	StageTopic       Stage = "topic"
	StageScript      Stage = "script"
	StageImages      Stage = "images"
	StageAudio       Stage = "audio"
	StageFinalReview Stage = "final_review"
	StageVideo       Stage = "video"

	ContentTypeRedditStory ContentType = "reddit_story"
	ContentTypeScaryStory  ContentType = "scary_story"
	ContentTypeFunFacts    ContentType = "fun_facts"
	ContentTypeMotivation  ContentType = "motivation"
	ContentTypeCustom      ContentType = "custom"

	ToneScary   Tone = "scary"
	ToneHorror  Tone = "horror"
	ToneRomance Tone = "romance"
	ToneFunny   Tone = "funny"
	ToneAngry   Tone = "angry"
	ToneSad     Tone = "sad"
	ToneNews    Tone = "news"
	ToneGossip  Tone = "gossip"
	ToneASMR    Tone = "asmr"
	ToneDefault Tone = "default"

	EffectZoomIn   CameraEffect = "zoom_in"
	EffectZoomOut  CameraEffect = "zoom_out"
	EffectPanLeft  CameraEffect = "pan_left"
	EffectPanRight CameraEffect = "pan_right"
	EffectStatic   CameraEffect = "static"
	EffectFade     CameraEffect = "fade"
)

// ParseContentType maps user input to a known content type, defaulting to
// reddit_story for anything unrecognized.
func ParseContentType(s string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentTypeRedditStory, ContentTypeScaryStory, ContentTypeFunFacts, ContentTypeMotivation, ContentTypeCustom:
		return ContentType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return ContentTypeRedditStory
	}
}

// ParseTone normalizes an LLM-emitted tone word. Unknown tones fall back to
// ToneDefault rather than failing the script.
func ParseTone(s string) Tone {
	switch Tone(strings.ToLower(strings.TrimSpace(s))) {
	case ToneScary, ToneHorror, ToneRomance, ToneFunny, ToneAngry, ToneSad, ToneNews, ToneGossip, ToneASMR:
		return Tone(strings.ToLower(strings.TrimSpace(s)))
	default:
		return ToneDefault
	}
}

// ParseCameraEffect normalizes an effect tag from a scene line. Unknown
// effects render as a static shot.
func ParseCameraEffect(s string) CameraEffect {
	switch CameraEffect(strings.ToLower(strings.TrimSpace(s))) {
	case EffectZoomIn, EffectZoomOut, EffectPanLeft, EffectPanRight, EffectFade:
		return CameraEffect(strings.ToLower(strings.TrimSpace(s)))
	default:
		return EffectStatic
	}
}

// Candidate is a scraped topic under consideration for a short.
type Candidate struct {
	Title       string      `json:"title"`
	Source      string      `json:"source"`
	URL         string      `json:"url"`
	Score       int         `json:"score"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// SceneInfo pairs one visual beat of the script with its camera treatment.
type SceneInfo struct {
	Effect      CameraEffect `json:"effect"`
	Description string       `json:"description"`
}

// Script is the narration broken into hook, body and call to action, plus
// the visual scene plan derived from it.
type Script struct {
	Hook   string      `json:"hook"`
	Body   string      `json:"body"`
	CTA    string      `json:"cta"`
	Tone   Tone        `json:"tone"`
	Scenes []SceneInfo `json:"scenes"`
}

// FullText joins the narration sections in speaking order.
func (s Script) FullText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Hook, s.Body, s.CTA} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s Script) WordCount() int {
	return len(strings.Fields(s.FullText()))
}

// Metadata is the publishing copy generated alongside an approved script.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type ImageResult struct {
	FilePath string       `json:"file_path"`
	Prompt   string       `json:"prompt"`
	Effect   CameraEffect `json:"effect"`
	Index    int          `json:"index"`
}

type AudioResult struct {
	FilePath string  `json:"file_path"`
	Duration float64 `json:"duration"` // seconds
	VoiceID  string  `json:"voice_id"`
}

type VideoResult struct {
	FilePath string  `json:"file_path"`
	Duration float64 `json:"duration"` // seconds
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// ShortUnit is the work unit owned by the pipeline for one short video.
// Only the orchestrator mutates it; adapters receive and return values.
type ShortUnit struct {
	ID          UnitID        `json:"id"`
	State       UnitState     `json:"state"`
	ContentType ContentType   `json:"content_type"`
	Topic       *Candidate    `json:"topic,omitempty"`
	Script      *Script       `json:"script,omitempty"`
	Metadata    *Metadata     `json:"metadata,omitempty"`
	Images      []ImageResult `json:"images,omitempty"`
	Audio       *AudioResult  `json:"audio,omitempty"`
	Video       *VideoResult  `json:"video,omitempty"`
	Attempts    map[Stage]int `json:"attempts"`
	Error       string        `json:"error,omitempty"`
	YouTubeID   string        `json:"youtube_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// NewShortUnit creates a unit in the initial state with a short run ID.
func NewShortUnit(ct ContentType) *ShortUnit {
	return &ShortUnit{
		ID:          UnitID(uuid.NewString()[:8]),
		State:       UnitStateTopicPending,
		ContentType: ct,
		Attempts:    make(map[Stage]int),
		CreatedAt:   time.Now().UTC(),
	}
}
