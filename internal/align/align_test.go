package align

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	tok, err := tokenizer.New([]string{
		tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken,
		"yesterday", "i", "fix", "##ed", "the", "log", "##in", "bug",
		"today", "will", "write", "test", "##s", "on", "mon", "##day",
	})
	require.NoError(t, err)
	return tok
}

var loginExample = dataset.Example{
	Tokens: []string{"Yesterday", "I", "fixed", "the", "login", "bug"},
	Labels: []string{"O", "B-YESTERDAY", "I-YESTERDAY", "I-YESTERDAY", "I-YESTERDAY", "I-YESTERDAY"},
}

func TestAlign(t *testing.T) {
	scheme := labels.Default()
	a, err := New(testTokenizer(t), scheme, 12)
	require.NoError(t, err)

	ex, err := a.Align(0, loginExample)
	require.NoError(t, err)

	o := scheme.MustID(labels.O)
	by := scheme.MustID(labels.B(labels.FieldYesterday))
	iy := scheme.MustID(labels.I(labels.FieldYesterday))

	// [CLS] yesterday i fix ##ed the log ##in bug [SEP] [PAD] [PAD]
	assert.Equal(t, []int{-1, 0, 1, 2, 2, 3, 4, 4, 5, -1, -1, -1}, ex.WordIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0}, ex.AttentionMask)
	assert.Equal(t, []int{IgnoreIndex, o, by, iy, iy, iy, iy, iy, iy, IgnoreIndex, IgnoreIndex, IgnoreIndex}, ex.LabelIDs)
	assert.Equal(t, tokenizer.ClsID, ex.InputIDs[0])
	assert.Equal(t, tokenizer.SepID, ex.InputIDs[9])
	assert.Equal(t, tokenizer.PadID, ex.InputIDs[11])
}

func TestAlignDowngradesBeginOnContinuation(t *testing.T) {
	scheme := labels.Default()
	a, err := New(testTokenizer(t), scheme, 16)
	require.NoError(t, err)

	ex, err := a.Align(0, dataset.Example{
		Tokens: []string{"on", "Monday", "fixed"},
		Labels: []string{"O", "B-DATE", "B-TODAY"},
	})
	require.NoError(t, err)

	// [CLS] on mon ##day fix ##ed [SEP]
	var decoded []string
	for _, id := range ex.LabelIDs[:7] {
		if id == IgnoreIndex {
			decoded = append(decoded, "-")
			continue
		}
		tag, err := scheme.Tag(id)
		require.NoError(t, err)
		decoded = append(decoded, tag.String())
	}
	assert.Equal(t, []string{"-", "O", "B-DATE", "I-DATE", "B-TODAY", "I-TODAY", "-"}, decoded)
}

func TestAlignFixedLength(t *testing.T) {
	scheme := labels.Default()
	tok := testTokenizer(t)
	for l := 1; l <= 20; l++ {
		a, err := New(tok, scheme, l)
		require.NoError(t, err)
		ex, err := a.Align(0, loginExample)
		require.NoError(t, err, "L=%d", l)
		assert.Len(t, ex.InputIDs, l, "L=%d", l)
		assert.Len(t, ex.AttentionMask, l, "L=%d", l)
		assert.Len(t, ex.LabelIDs, l, "L=%d", l)
		assert.Len(t, ex.WordIDs, l, "L=%d", l)
		assert.Equal(t, tokenizer.ClsID, ex.InputIDs[0])
	}
}

func TestNewRejectsZeroLength(t *testing.T) {
	_, err := New(testTokenizer(t), labels.Default(), 0)
	assert.Error(t, err)
}

func TestCollapseRoundTrip(t *testing.T) {
	scheme := labels.Default()
	a, err := New(testTokenizer(t), scheme, 32)
	require.NoError(t, err)

	examples := []dataset.Example{
		loginExample,
		{
			Tokens: []string{"today", "I", "will", "write", "tests"},
			Labels: []string{"O", "B-TODAY", "I-TODAY", "I-TODAY", "I-TODAY"},
		},
		{
			Tokens: []string{"on", "Monday", "fixed", "bug"},
			Labels: []string{"O", "B-DATE", "B-REPORT", "I-REPORT"},
		},
	}

	aligned, err := a.Map(examples)
	require.NoError(t, err)
	require.Len(t, aligned, len(examples))

	for i, ex := range aligned {
		want, err := examples[i].Tags()
		require.NoError(t, err)
		got, err := Collapse(ex, scheme)
		require.NoError(t, err)
		assert.Equal(t, want, got, "example %d", i)
		assert.Equal(t, len(examples[i].Tokens), Words(ex))
	}
}

func TestCollapseTruncated(t *testing.T) {
	scheme := labels.Default()
	a, err := New(testTokenizer(t), scheme, 5)
	require.NoError(t, err)

	ex, err := a.Align(0, loginExample)
	require.NoError(t, err)

	// [CLS] yesterday i fix [SEP]
	got, err := Collapse(ex, scheme)
	require.NoError(t, err)
	assert.Equal(t, []labels.Tag{labels.O, labels.B(labels.FieldYesterday), labels.I(labels.FieldYesterday)}, got)
}

type badEncoder struct{}

func (badEncoder) EncodeWords(words []string) tokenizer.Encoding {
	return tokenizer.Encoding{
		IDs:     []int{4, 5},
		Tokens:  []string{"a", "b"},
		WordIDs: []int{0, len(words)},
	}
}

func TestAlignmentError(t *testing.T) {
	a, err := New(badEncoder{}, labels.Default(), 8)
	require.NoError(t, err)

	_, err = a.Map([]dataset.Example{
		{Tokens: []string{"ok"}, Labels: []string{"O"}, Index: 17},
	})
	var ae *AlignmentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 17, ae.Example)
	assert.Equal(t, 1, ae.WordID)
	assert.Equal(t, 2, ae.Position)
}

func TestAlignRejectsWordWithoutPieces(t *testing.T) {
	a, err := New(testTokenizer(t), labels.Default(), 16)
	require.NoError(t, err)

	tests := []struct {
		name string
		word string
	}{
		{"zero width space", "\u200b"},
		{"combining mark", "\u0301"},
		{"control", "\x07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Align(4, dataset.Example{
				Tokens: []string{"Yesterday", tt.word, "fixed", "bug"},
				Labels: []string{"O", "B-YESTERDAY", "I-YESTERDAY", "I-YESTERDAY"},
			})
			var ae *AlignmentError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, 4, ae.Example)
			assert.Equal(t, 1, ae.WordID)
			assert.Equal(t, -1, ae.Position)
			assert.Contains(t, err.Error(), "word 1 of 4 produced no subword pieces")
		})
	}
}

func TestMapWithSkipInvalid(t *testing.T) {
	scheme := labels.Default()
	a, err := New(testTokenizer(t), scheme, 16)
	require.NoError(t, err)

	examples := []dataset.Example{
		{Tokens: []string{"fixed", "bug"}, Labels: []string{"B-YESTERDAY", "I-YESTERDAY"}, Index: 3},
		{Tokens: []string{"\u200b", "bug"}, Labels: []string{"B-TODAY", "I-TODAY"}, Index: 8},
		{Tokens: []string{"write", "tests"}, Labels: []string{"B-TODAY", "I-TODAY"}, Index: 11},
	}

	_, report, err := a.MapWith(examples, MapOptions{})
	var ae *AlignmentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 8, ae.Example)
	assert.Empty(t, report.Rejected)

	aligned, report, err := a.MapWith(examples, MapOptions{SkipInvalid: true})
	require.NoError(t, err)
	require.Len(t, aligned, 2)
	assert.Equal(t, []int{3, 11}, []int{aligned[0].Source, aligned[1].Source})
	assert.Equal(t, 3, report.Total)
	require.Len(t, report.Rejected, 1)
	require.True(t, errors.As(report.Rejected[0], &ae))
	assert.Equal(t, 8, ae.Example)

	for i, ex := range aligned {
		got, err := Collapse(ex, scheme)
		require.NoError(t, err)
		want, err := examples[2*i].Tags()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAlignUnknownTag(t *testing.T) {
	a, err := New(testTokenizer(t), labels.Default(), 8)
	require.NoError(t, err)

	_, err = a.Align(3, dataset.Example{Tokens: []string{"bug"}, Labels: []string{"B-WEATHER"}})
	var se *dataset.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Index)
}

func TestFrame(t *testing.T) {
	ids, words := Frame([]int{7, 8, 9}, []int{0, 0, 1}, 4)
	assert.Equal(t, []int{tokenizer.ClsID, 7, 8, tokenizer.SepID}, ids)
	assert.Equal(t, []int{NoWord, 0, 0, NoWord}, words)

	ids, words = Frame(nil, nil, 1)
	assert.Equal(t, []int{tokenizer.ClsID}, ids)
	assert.Equal(t, []int{NoWord}, words)
}
