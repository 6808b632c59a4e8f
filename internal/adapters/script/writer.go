package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shortforge/internal/core/domain"
	"shortforge/internal/core/ports"
)

const maxTopicContentChars = 3000

const writerSystemPrompt = `You are a viral YouTube Shorts scriptwriter. Your scripts open with a
hook that stops the scroll within three seconds, build tension with short
conversational sentences that read naturally when spoken aloud, and end on
a twist or an open question. Never ask viewers to like, follow or
subscribe. Write narration in first person as a lived experience.`

const writerUserPromptTemplate = `Create a YouTube Shorts script from this content:

Title: %s
Source: %s
Original Content:
%s

Content Type: %s

Output format:
HOOK:
[one shocking opening sentence, natural for text-to-speech]

BODY:
[the story, short sentences, natural spoken rhythm]

CTA:
[twist or open ending that invites comments, never "subscribe"]

TONE:
[exactly one word: scary/horror/romance/funny/angry/sad/news/gossip/asmr/default]

SCENES (in English, one per line, 15-20 scenes):
- [zoom_in] shocked face looking at phone
- [static] couple sitting at cafe
- [fade] girl sitting alone in room

Camera effects: [zoom_in] for shock moments, [zoom_out] to reveal the
scene, [static] for dialogue, [fade] for passage of time.`

const metadataSystemPrompt = `You are a YouTube SEO expert. Generate metadata that maximizes views.
Output in this exact format:
TITLE: [catchy title under 60 chars]
DESCRIPTION: [2-3 sentences with keywords and a call to action]
TAGS: [comma-separated relevant tags, 10-15 tags]`

const metadataUserPromptTemplate = `Generate YouTube Shorts metadata for this script:

Hook: %s
Content Type: %s
Source: %s

Full Script:
%s`

// Writer generates narration scripts and publishing metadata via an LLM
// and parses the marker-based response format.
type Writer struct {
	logger *slog.Logger
	llm    ports.TextGenerator
}

func NewWriter(logger *slog.Logger, llm ports.TextGenerator) *Writer {
	return &Writer{logger: logger, llm: llm}
}

func (w *Writer) WriteScript(ctx context.Context, topic domain.Candidate) (*domain.Script, error) {
	content := topic.Content
	if len(content) > maxTopicContentChars {
		content = content[:maxTopicContentChars]
	}

	prompt := fmt.Sprintf(writerUserPromptTemplate, topic.Title, topic.Source, content, topic.ContentType)
	response, err := w.llm.GenerateText(ctx, writerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	script, err := w.parseScript(response)
	if err != nil {
		return nil, err
	}

	w.logger.Info("script generated", "words", script.WordCount(), "scenes", len(script.Scenes), "tone", script.Tone)
	return script, nil
}

// parseScript walks the response line by line, switching sections on the
// HOOK/BODY/CTA/TONE/SCENES markers. Content on the marker line itself is
// kept; continuation lines are appended to the open section.
func (w *Writer) parseScript(response string) (*domain.Script, error) {
	var hook, body, cta []string
	var scenes []domain.SceneInfo
	tone := domain.ToneDefault

	section := ""
	for _, line := range strings.Split(response, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case strings.HasPrefix(upper, "HOOK:"):
			section = "hook"
			if rest := markerRest(line, "HOOK:"); rest != "" {
				hook = append(hook, rest)
			}
		case strings.HasPrefix(upper, "BODY:"):
			section = "body"
			if rest := markerRest(line, "BODY:"); rest != "" {
				body = append(body, rest)
			}
		case strings.HasPrefix(upper, "CTA:"):
			section = "cta"
			if rest := markerRest(line, "CTA:"); rest != "" {
				cta = append(cta, rest)
			}
		case strings.HasPrefix(upper, "TONE:"):
			section = ""
			rest := markerRest(line, "TONE:")
			if fields := strings.Fields(rest); len(fields) > 0 {
				tone = domain.ParseTone(fields[0])
				if tone == domain.ToneDefault && !strings.EqualFold(fields[0], string(domain.ToneDefault)) {
					w.logger.Warn("unknown tone, using default", "tone", fields[0])
				}
			}
		case strings.HasPrefix(upper, "SCENES"):
			section = "scenes"
		case strings.TrimSpace(line) != "" && section != "":
			trimmed := strings.TrimSpace(line)
			switch section {
			case "hook":
				hook = append(hook, trimmed)
			case "body":
				body = append(body, trimmed)
			case "cta":
				cta = append(cta, trimmed)
			case "scenes":
				if scene, ok := parseSceneLine(trimmed); ok {
					scenes = append(scenes, scene)
				}
			}
		}
	}

	script := &domain.Script{
		Hook:   strings.Join(hook, " "),
		Body:   strings.Join(body, " "),
		CTA:    strings.Join(cta, " "),
		Tone:   tone,
		Scenes: scenes,
	}

	if script.Hook == "" || script.Body == "" {
		return nil, fmt.Errorf("script response missing hook or body")
	}
	if len(script.Scenes) == 0 {
		return nil, fmt.Errorf("script response contains no scenes")
	}
	return script, nil
}

// parseSceneLine reads "- [effect] description" entries. The bracket tag is
// optional and defaults to a static shot; a "Scene N:" prefix is stripped.
func parseSceneLine(line string) (domain.SceneInfo, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
	if line == "" {
		return domain.SceneInfo{}, false
	}

	// The effect tag and a "Scene N:" prefix appear in either order.
	effect := domain.EffectStatic
	for i := 0; i < 2; i++ {
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				effect = domain.ParseCameraEffect(line[1:end])
				line = strings.TrimSpace(line[end+1:])
			}
		}
		if before, after, found := strings.Cut(line, ":"); found &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(before)), "scene") {
			line = strings.TrimSpace(after)
		}
	}

	if line == "" {
		return domain.SceneInfo{}, false
	}
	return domain.SceneInfo{Effect: effect, Description: line}, true
}

func markerRest(line, marker string) string {
	idx := strings.Index(strings.ToUpper(line), marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+len(marker):])
}

func (w *Writer) GenerateMetadata(ctx context.Context, script *domain.Script, topic domain.Candidate) (*domain.Metadata, error) {
	prompt := fmt.Sprintf(metadataUserPromptTemplate, script.Hook, topic.ContentType, topic.Source, script.FullText())
	response, err := w.llm.GenerateText(ctx, metadataSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate metadata: %w", err)
	}

	meta := parseMetadata(response)
	if meta.Title == "" {
		// A short can still publish under its hook.
		meta.Title = script.Hook
	}
	w.logger.Info("metadata generated", "title", meta.Title, "tags", len(meta.Tags))
	return meta, nil
}

func parseMetadata(response string) *domain.Metadata {
	meta := &domain.Metadata{}
	for _, line := range strings.Split(response, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(upper, "TITLE:"):
			meta.Title = markerRest(line, "TITLE:")
		case strings.HasPrefix(upper, "DESCRIPTION:"):
			meta.Description = markerRest(line, "DESCRIPTION:")
		case strings.HasPrefix(upper, "TAGS:"):
			for _, tag := range strings.Split(markerRest(line, "TAGS:"), ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					meta.Tags = append(meta.Tags, tag)
				}
			}
		}
	}
	return meta
}
