package domain

type ReviewLabel string

const (
	LabelApproved      ReviewLabel = "approved"
	LabelRejected      ReviewLabel = "rejected"
	LabelNeedsRevision ReviewLabel = "revision"

	// MinScore and MaxScore bound the 1-10 grading scale.
	MinScore = 1
	MaxScore = 10

	// approveScore and rejectScore are the thresholds where the numeric
	// score overrides whatever label the reviewer emitted.
	approveScore = 9
	rejectScore  = 4
)

// Verdict is a reviewer's judgement of one artifact.
type Verdict struct {
	Result      ReviewLabel `json:"result"`
	Score       int         `json:"score"`
	Feedback    string      `json:"feedback"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// Effective resolves the label/score conflict: a score of 9 or above is
// always an approval and a score of 4 or below is always a rejection, no
// matter what the reviewer labeled it. In between, the label stands.
func (v Verdict) Effective() ReviewLabel {
	if v.Score >= approveScore {
		return LabelApproved
	}
	if v.Score <= rejectScore {
		return LabelRejected
	}
	return v.Result
}

// Approved reports whether the effective outcome is an approval. A
// needs-revision label counts as a rejection.
func (v Verdict) Approved() bool {
	return v.Effective() == LabelApproved
}

// ClampScore pulls an out-of-range score back onto the 1-10 scale.
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
