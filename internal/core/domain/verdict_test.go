package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdictEffective_ScoreOverridesLabel(t *testing.T) {
	labels := []ReviewLabel{LabelApproved, LabelRejected, LabelNeedsRevision}

	for _, label := range labels {
		// High scores always approve, whatever the label says.
		for _, score := range []int{9, 10} {
			v := Verdict{Result: label, Score: score}
			assert.Equal(t, LabelApproved, v.Effective(), "label=%s score=%d", label, score)
			assert.True(t, v.Approved())
		}
		// Low scores always reject.
		for _, score := range []int{1, 2, 3, 4} {
			v := Verdict{Result: label, Score: score}
			assert.Equal(t, LabelRejected, v.Effective(), "label=%s score=%d", label, score)
			assert.False(t, v.Approved())
		}
	}
}

func TestVerdictEffective_MidScoresKeepLabel(t *testing.T) {
	for _, score := range []int{5, 6, 7, 8} {
		assert.Equal(t, LabelApproved, Verdict{Result: LabelApproved, Score: score}.Effective())
		assert.Equal(t, LabelRejected, Verdict{Result: LabelRejected, Score: score}.Effective())
		assert.Equal(t, LabelNeedsRevision, Verdict{Result: LabelNeedsRevision, Score: score}.Effective())
	}
}

func TestVerdictApproved_RevisionCountsAsRejection(t *testing.T) {
	v := Verdict{Result: LabelNeedsRevision, Score: 6}
	assert.False(t, v.Approved())
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 1, ClampScore(-3))
	assert.Equal(t, 1, ClampScore(0))
	assert.Equal(t, 5, ClampScore(5))
	assert.Equal(t, 10, ClampScore(10))
	assert.Equal(t, 10, ClampScore(42))
}

func TestParseCameraEffect(t *testing.T) {
	assert.Equal(t, EffectZoomIn, ParseCameraEffect("zoom_in"))
	assert.Equal(t, EffectZoomIn, ParseCameraEffect(" ZOOM_IN "))
	assert.Equal(t, EffectFade, ParseCameraEffect("fade"))
	assert.Equal(t, EffectStatic, ParseCameraEffect("wobble"))
	assert.Equal(t, EffectStatic, ParseCameraEffect(""))
}

func TestParseTone(t *testing.T) {
	assert.Equal(t, ToneScary, ParseTone("Scary"))
	assert.Equal(t, ToneDefault, ParseTone("melancholic"))
	assert.Equal(t, ToneDefault, ParseTone(""))
}

func TestScriptFullText(t *testing.T) {
	s := Script{Hook: "The hook.", Body: "The body.", CTA: "The twist."}
	assert.Equal(t, "The hook.\n\nThe body.\n\nThe twist.", s.FullText())
	assert.Equal(t, 6, s.WordCount())

	empty := Script{Hook: "Only hook."}
	assert.Equal(t, "Only hook.", empty.FullText())
}
