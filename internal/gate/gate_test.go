package gate

import (
	"errors"
	"testing"

	"github.com/ppiankov/truthgate/internal/llm"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() Table {
	return Table{
		Statuses: map[string]model.VerificationStatus{
			"approval":   model.StatusVerified,
			"trial":      model.StatusPartiallyVerified,
			"efficacy":   model.StatusConflicting,
			"rumor":      model.StatusUnverified,
			"label.2024": model.StatusVerified,
		},
		Included: []string{"approval", "trial"},
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"terminators", "A is B. C is D! E?", []string{"A is B.", "C is D!", "E?"}},
		{"decimal not split", "Dose is 2.5 mg. Done.", []string{"Dose is 2.5 mg.", "Done."}},
		{"newline", "first line\nsecond line", []string{"first line", "second line"}},
		{"trailing citation attaches", "A is B. [claim:x] C is D. [claim:y]", []string{"A is B. [claim:x]", "C is D. [claim:y]"}},
		{"several trailing tokens", "A is B. [claim:x] [claim:y] Next.", []string{"A is B. [claim:x] [claim:y]", "Next."}},
		{"citation on next line stays apart", "A is B.\n[claim:x]", []string{"A is B.", "[claim:x]"}},
		{"blank", "  \n\n ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestParseCitations(t *testing.T) {
	ids, err := ParseCitations(0, "X holds [claim:b, claim:a,c] and [CLAIM:A].")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids, err = ParseCitations(0, "No citation here.")
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, bad := range []string{
		"Empty [claim:] token.",
		"Unclosed [claim:a token.",
		"Bad id [claim:-a].",
		"Space in id [claim:a b].",
		"Trailing comma [claim:a,].",
	} {
		_, err := ParseCitations(3, bad)
		var mismatch *CitationMismatchError
		if assert.True(t, errors.As(err, &mismatch), bad) {
			assert.Equal(t, 3, mismatch.Sentence)
		}
	}
}

func TestCheck_AcceptsOnlySupportedIncludedClaims(t *testing.T) {
	narrative := "Examplinib is approved [claim:approval].\n" +
		"A phase 3 trial is ongoing. [claim:trial]\n" +
		"It cuts tumor size by 40% [claim:efficacy].\n" +
		"Analysts expect more [claim:rumor].\n" +
		"The label changed [claim:label.2024].\n" +
		"It is widely used [claim:missing].\n" +
		"This sentence has no citation."

	res := Check(narrative, testTable())
	assert.False(t, res.Abstained)
	assert.Equal(t, "Examplinib is approved [claim:approval]. A phase 3 trial is ongoing. [claim:trial]", res.Text)
	assert.Equal(t, []string{"approval", "trial"}, res.SupportedClaimIDs)

	require.Len(t, res.Verdicts, 7)
	states := make([]model.SentenceState, len(res.Verdicts))
	for i, v := range res.Verdicts {
		states[i] = v.State
		assert.Equal(t, i, v.Index)
	}
	assert.Equal(t, []model.SentenceState{
		model.SentenceAccepted, model.SentenceAccepted,
		model.SentenceRejected, model.SentenceRejected,
		model.SentenceRejected, model.SentenceRejected, model.SentenceRejected,
	}, states)
	assert.Contains(t, res.Verdicts[2].Reason, "conflicting")
	assert.Contains(t, res.Verdicts[3].Reason, "unverified")
	assert.Contains(t, res.Verdicts[4].Reason, "not in the prompt")
	assert.Contains(t, res.Verdicts[5].Reason, "unknown")
	assert.Contains(t, res.Verdicts[6].Reason, "no citation")
}

func TestCheck_MixedCitationRejected(t *testing.T) {
	res := Check("Approved and effective [claim:approval,efficacy].", testTable())
	assert.True(t, res.Abstained)
	assert.Empty(t, res.SupportedClaimIDs)
	require.Len(t, res.Verdicts, 1)
	assert.Equal(t, model.SentenceRejected, res.Verdicts[0].State)
	assert.Equal(t, []string{"approval", "efficacy"}, res.Verdicts[0].CitedIDs)
}

func TestCheck_NeverSupportsUnverifiedOrConflicting(t *testing.T) {
	table := testTable()
	table.Included = append(table.Included, "efficacy", "rumor")
	res := Check("A [claim:efficacy]. B [claim:rumor]. C [claim:approval].", table)
	for _, id := range res.SupportedClaimIDs {
		assert.True(t, table.Statuses[id].Supported(), id)
	}
	assert.Equal(t, []string{"approval"}, res.SupportedClaimIDs)
}

func TestCheck_Sentinel(t *testing.T) {
	res := Check("Examplinib is approved [claim:approval]. "+llm.AbstainSentinel, testTable())
	assert.True(t, res.Abstained)
	assert.Empty(t, res.Text)
	assert.Empty(t, res.SupportedClaimIDs)
}

func TestCheck_ZeroAccepted(t *testing.T) {
	res := Check("Nothing cited here. Nor here.", testTable())
	assert.True(t, res.Abstained)
	assert.Len(t, res.Verdicts, 2)

	res = Check("", testTable())
	assert.True(t, res.Abstained)
	assert.Empty(t, res.Verdicts)
}

func TestCheck_CitationOnlySentenceRejected(t *testing.T) {
	res := Check("[claim:approval]", testTable())
	assert.True(t, res.Abstained)
	assert.Contains(t, res.Verdicts[0].Reason, "no content")
}

func TestCheck_Idempotent(t *testing.T) {
	narrative := "Examplinib is approved [claim:approval].\nIt is in a phase 3 trial. [claim:trial] Unsupported claim.\nRumor [claim:rumor]."
	first := Check(narrative, testTable())
	second := Check(first.Text, testTable())

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.SupportedClaimIDs, second.SupportedClaimIDs)
	assert.Equal(t, first.Abstained, second.Abstained)
	for _, v := range second.Verdicts {
		assert.Equal(t, model.SentenceAccepted, v.State)
	}
}

func TestCheck_Deterministic(t *testing.T) {
	narrative := "A [claim:trial,approval]. B [claim:approval]."
	want := Check(narrative, testTable())
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, Check(narrative, testTable()))
	}
}
