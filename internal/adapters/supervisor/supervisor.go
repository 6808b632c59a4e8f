package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"shortforge/internal/core/domain"
	"shortforge/internal/core/ports"
)

const systemPrompt = `You are a STRICT and DEMANDING creative director for viral YouTube Shorts.
You have extremely high standards and rarely approve on the first try.
Your job is to review each stage of content creation and give brutally honest feedback.

Scoring criteria (1-10):
- 1-4: REJECTED - Completely unacceptable, start over
- 5-6: NEEDS_REVISION - Has potential but needs significant changes
- 7-8: Good but could be better, minor revisions
- 9-10: APPROVED - Excellent, meets viral standards

You must output in this EXACT format:
RESULT: [approved/rejected/revision]
SCORE: [1-10]
FEEDBACK: [Your brutally honest assessment]
SUGGESTIONS:
- [Specific improvement 1]
- [Specific improvement 2]`

const finalReviewSuffix = `

This is the FINAL review before video creation.
Be extra critical - once approved, the video will be created.`

// Supervisor implements the quality gate with an LLM reviewer speaking the
// RESULT/SCORE/FEEDBACK/SUGGESTIONS protocol.
type Supervisor struct {
	logger *slog.Logger
	llm    ports.TextGenerator
}

func NewSupervisor(logger *slog.Logger, llm ports.TextGenerator) *Supervisor {
	return &Supervisor{logger: logger, llm: llm}
}

func (s *Supervisor) ReviewTopic(ctx context.Context, c domain.Candidate) (domain.Verdict, error) {
	content := c.Content
	if len(content) > 2000 {
		content = content[:2000]
	}
	prompt := fmt.Sprintf(`Review this trending content for viral YouTube Shorts potential:

Title: %s
Source: %s
Score/Upvotes: %d
Content Preview:
%s

Evaluate:
1. Is this topic interesting enough for viral Shorts?
2. Does it have emotional hook potential?
3. Can this be condensed into 45-60 seconds effectively?

Be VERY strict. We only want content that has VIRAL potential.`,
		c.Title, c.Source, c.Score, content)
	return s.review(ctx, systemPrompt, prompt)
}

func (s *Supervisor) ReviewScript(ctx context.Context, sc *domain.Script, topic domain.Candidate) (domain.Verdict, error) {
	var scenes strings.Builder
	for _, scene := range sc.Scenes {
		fmt.Fprintf(&scenes, "- [%s] %s\n", scene.Effect, scene.Description)
	}
	prompt := fmt.Sprintf(`Review this YouTube Shorts script:

Original Topic: %s

=== HOOK (First 3 seconds) ===
%s

=== BODY ===
%s

=== CALL TO ACTION ===
%s

=== SCENES (%d scenes) ===
%s
Word count: %d words

Evaluate HARSHLY:
1. HOOK: Does it INSTANTLY grab attention? Would you stop scrolling?
2. PACING: Is every second engaging? Any boring parts?
3. EMOTION: Does it make viewers FEEL something?
4. CTA: Is it natural, not cringy?
5. SCENES: Are the visual descriptions vivid and appropriate?
6. LENGTH: Is it concise enough for Shorts? (100-150 words ideal)`,
		topic.Title, sc.Hook, sc.Body, sc.CTA, len(sc.Scenes), scenes.String(), sc.WordCount())
	return s.review(ctx, systemPrompt, prompt)
}

func (s *Supervisor) ReviewImages(ctx context.Context, images []domain.ImageResult, sc *domain.Script) (domain.Verdict, error) {
	var prompts strings.Builder
	for i, img := range images {
		p := img.Prompt
		if len(p) > 200 {
			p = p[:200]
		}
		fmt.Fprintf(&prompts, "Image %d: %s\n", i+1, p)
	}
	body := sc.Body
	if len(body) > 500 {
		body = body[:500]
	}
	prompt := fmt.Sprintf(`Review the image generation results:

Script Hook: %s
Script Body: %s

Generated Images (%d total):
%s
Evaluate:
1. Do the images match the story/script?
2. Is there visual variety across scenes?
3. Will these images keep viewers engaged?

Note: I can only see the prompts, not the actual images.
Judge based on whether the prompts would generate appropriate visuals.`,
		sc.Hook, body, len(images), prompts.String())
	return s.review(ctx, systemPrompt, prompt)
}

func (s *Supervisor) ReviewAudio(ctx context.Context, a *domain.AudioResult, sc *domain.Script) (domain.Verdict, error) {
	text := sc.FullText()
	if len(text) > 1000 {
		text = text[:1000]
	}
	prompt := fmt.Sprintf(`Review the TTS audio generation:

Script length: %d words
Audio duration: %.1f seconds
Voice ID: %s

Target duration for Shorts: 45-60 seconds

Script content:
%s

Guidelines:
- Under 30s: Too short, might feel rushed
- 30-45s: Acceptable for quick content
- 45-60s: Ideal range
- Over 60s: Too long for Shorts`,
		sc.WordCount(), a.Duration, a.VoiceID, text)
	return s.review(ctx, systemPrompt, prompt)
}

func (s *Supervisor) FinalReview(ctx context.Context, unit *domain.ShortUnit) (domain.Verdict, error) {
	prompt := fmt.Sprintf(`FINAL REVIEW - All components ready for video creation:

=== SOURCE ===
Title: %s
Source: %s
Original Score: %d

=== SCRIPT ===
Hook: %s
Body: %s
CTA: %s
Total words: %d

=== ASSETS ===
Images: %d scenes
Audio: %.1f seconds

Give your FINAL verdict:
- Is this ready to become a viral YouTube Short?
- Any last-minute concerns?

Remember: This is your last chance to reject before video creation.`,
		unit.Topic.Title, unit.Topic.Source, unit.Topic.Score,
		unit.Script.Hook, unit.Script.Body, unit.Script.CTA, unit.Script.WordCount(),
		len(unit.Images), unit.Audio.Duration)
	return s.review(ctx, systemPrompt+finalReviewSuffix, prompt)
}

func (s *Supervisor) review(ctx context.Context, system, prompt string) (domain.Verdict, error) {
	response, err := s.llm.GenerateText(ctx, system, prompt)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("supervisor review: %w", err)
	}
	verdict := ParseFeedback(response)
	s.logger.Info("review complete", "result", verdict.Effective(), "score", verdict.Score)
	return verdict, nil
}

// ParseFeedback scans the reviewer's free-text response for the protocol
// markers. Missing or malformed fields degrade to a rejected label with a
// neutral score of 5; the label/score conflict is resolved later by
// Verdict.Effective.
func ParseFeedback(response string) domain.Verdict {
	verdict := domain.Verdict{
		Result: domain.LabelRejected,
		Score:  5,
	}

	section := ""
	for _, line := range strings.Split(response, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(upper, "RESULT:"):
			value := strings.ToLower(afterColon(trimmed))
			switch {
			case strings.Contains(value, "approved"):
				verdict.Result = domain.LabelApproved
			case strings.Contains(value, "revision"):
				verdict.Result = domain.LabelNeedsRevision
			default:
				verdict.Result = domain.LabelRejected
			}
		case strings.HasPrefix(upper, "SCORE:"):
			fields := strings.Fields(afterColon(trimmed))
			if len(fields) > 0 {
				if n, err := strconv.Atoi(fields[0]); err == nil {
					verdict.Score = domain.ClampScore(n)
				}
			}
		case strings.HasPrefix(upper, "FEEDBACK:"):
			verdict.Feedback = afterColon(trimmed)
			section = "feedback"
		case strings.HasPrefix(upper, "SUGGESTIONS:"):
			section = "suggestions"
		case trimmed != "" && section == "feedback" && !strings.HasPrefix(trimmed, "-"):
			if verdict.Feedback != "" {
				verdict.Feedback += " "
			}
			verdict.Feedback += trimmed
		case trimmed != "" && section == "suggestions" && strings.HasPrefix(trimmed, "-"):
			verdict.Suggestions = append(verdict.Suggestions, strings.TrimSpace(trimmed[1:]))
		}
	}

	return verdict
}

func afterColon(line string) string {
	_, after, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}
