package script

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortforge/internal/core/domain"
)

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) GenerateText(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func testWriter(response string) (*Writer, *fakeLLM) {
	llm := &fakeLLM{response: response}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return NewWriter(logger, llm), llm
}

const sampleResponse = `HOOK:
I found my name in my boss's phone under "do not promote".

BODY:
I was covering a shift nobody wanted.
Then his phone lit up on the break room table.

CTA:
Would you have said something? Because I did.

TONE:
angry

SCENES (in English):
- [zoom_in] shocked face looking at phone
- [static] empty break room with flickering light
- Scene 3: [fade] office hallway at night
- [wobble] crowd cheering
- plain description with no tag`

func TestWriteScript_ParsesSections(t *testing.T) {
	w, _ := testWriter(sampleResponse)

	script, err := w.WriteScript(context.Background(), domain.Candidate{Title: "t", ContentType: domain.ContentTypeRedditStory})
	require.NoError(t, err)

	assert.Equal(t, `I found my name in my boss's phone under "do not promote".`, script.Hook)
	assert.Equal(t, "I was covering a shift nobody wanted. Then his phone lit up on the break room table.", script.Body)
	assert.Equal(t, "Would you have said something? Because I did.", script.CTA)
	assert.Equal(t, domain.ToneAngry, script.Tone)

	require.Len(t, script.Scenes, 5)
	assert.Equal(t, domain.SceneInfo{Effect: domain.EffectZoomIn, Description: "shocked face looking at phone"}, script.Scenes[0])
	assert.Equal(t, domain.SceneInfo{Effect: domain.EffectStatic, Description: "empty break room with flickering light"}, script.Scenes[1])
	assert.Equal(t, domain.SceneInfo{Effect: domain.EffectFade, Description: "office hallway at night"}, script.Scenes[2], "scene prefix must be stripped")
	assert.Equal(t, domain.EffectStatic, script.Scenes[3].Effect, "unknown effect falls back to static")
	assert.Equal(t, domain.SceneInfo{Effect: domain.EffectStatic, Description: "plain description with no tag"}, script.Scenes[4])
}

func TestWriteScript_InlineMarkerContent(t *testing.T) {
	w, _ := testWriter(`HOOK: Inline hook text.
BODY: Inline body text.
CTA: Inline cta.
TONE: scary extra words ignored
SCENES:
- [zoom_out] wide shot of a dark forest`)

	script, err := w.WriteScript(context.Background(), domain.Candidate{})
	require.NoError(t, err)
	assert.Equal(t, "Inline hook text.", script.Hook)
	assert.Equal(t, "Inline body text.", script.Body)
	assert.Equal(t, domain.ToneScary, script.Tone, "only the first tone word counts")
}

func TestWriteScript_UnknownToneFallsBack(t *testing.T) {
	w, _ := testWriter(`HOOK: h
BODY: b
TONE: melancholic
SCENES:
- [static] something`)

	script, err := w.WriteScript(context.Background(), domain.Candidate{})
	require.NoError(t, err)
	assert.Equal(t, domain.ToneDefault, script.Tone)
}

func TestWriteScript_MissingSectionsIsError(t *testing.T) {
	w, _ := testWriter("Here is a great story idea with no structure at all.")

	_, err := w.WriteScript(context.Background(), domain.Candidate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing hook or body")
}

func TestWriteScript_NoScenesIsError(t *testing.T) {
	w, _ := testWriter(`HOOK: h
BODY: b
TONE: funny`)

	_, err := w.WriteScript(context.Background(), domain.Candidate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenes")
}

func TestWriteScript_LLMErrorPropagates(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model overloaded")}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	w := NewWriter(logger, llm)

	_, err := w.WriteScript(context.Background(), domain.Candidate{})
	assert.ErrorContains(t, err, "model overloaded")
}

func TestWriteScript_TruncatesLongTopicContent(t *testing.T) {
	w, llm := testWriter(sampleResponse)

	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'x'
	}
	_, err := w.WriteScript(context.Background(), domain.Candidate{Content: string(long)})
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Less(t, len(llm.prompts[0]), 5000, "topic content must be truncated before prompting")
}

func TestGenerateMetadata(t *testing.T) {
	w, _ := testWriter(`TITLE: My Boss Kept a Secret List
DESCRIPTION: The list had my name on it. Watch until the end.
TAGS: storytime, work, reddit stories, drama`)

	meta, err := w.GenerateMetadata(context.Background(), &domain.Script{Hook: "hook"}, domain.Candidate{})
	require.NoError(t, err)
	assert.Equal(t, "My Boss Kept a Secret List", meta.Title)
	assert.Equal(t, "The list had my name on it. Watch until the end.", meta.Description)
	assert.Equal(t, []string{"storytime", "work", "reddit stories", "drama"}, meta.Tags)
}

func TestGenerateMetadata_TitleFallsBackToHook(t *testing.T) {
	w, _ := testWriter("DESCRIPTION: something\nTAGS: a, b")

	meta, err := w.GenerateMetadata(context.Background(), &domain.Script{Hook: "The hook line"}, domain.Candidate{})
	require.NoError(t, err)
	assert.Equal(t, "The hook line", meta.Title)
}
