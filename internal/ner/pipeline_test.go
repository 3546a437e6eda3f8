package ner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

const standup = "Yesterday I fixed the login bug today I will write tests"

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	tok, err := tokenizer.New([]string{
		tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken,
		"yesterday", "i", "fix", "##ed", "the", "log", "##in", "bug",
		"today", "will", "write", "test", "##s",
	})
	require.NoError(t, err)
	return tok
}

// stubModel predicts tags[i] at framed position i with probability 0.9 and
// O beyond the end of tags.
type stubModel struct {
	scheme *labels.Scheme
	tags   []labels.Tag
}

func (m stubModel) NumLabels() int { return m.scheme.Len() }

func (m stubModel) Forward(ids, mask []int) [][]float64 {
	k := m.scheme.Len()
	out := make([][]float64, len(ids))
	for i := range ids {
		if mask[i] == 0 {
			continue
		}
		tag := labels.O
		if i < len(m.tags) {
			tag = m.tags[i]
		}
		row := make([]float64, k)
		for j := range row {
			row[j] = 0.1 / float64(k-1)
		}
		row[m.scheme.MustID(tag)] = 0.9
		out[i] = row
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, m model.TokenClassifier, opts Options) *Pipeline {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	p, err := New(testTokenizer(t), m, labels.Default(), opts)
	require.NoError(t, err)
	return p
}

var (
	bY = labels.B(labels.FieldYesterday)
	iY = labels.I(labels.FieldYesterday)
	bT = labels.B(labels.FieldToday)
	iT = labels.I(labels.FieldToday)
	o  = labels.O
)

// Framed: [CLS] yesterday i fix ##ed the log ##in bug today i will write test ##s [SEP]
var standupTags = []labels.Tag{o, o, bY, iY, iY, iY, iY, iY, iY, o, bT, iT, iT, iT, iT, o}

func TestExtractStandup(t *testing.T) {
	mc := metrics.NewCollector()
	p := newPipeline(t, stubModel{scheme: labels.Default(), tags: standupTags}, Options{Metrics: mc})

	spans, err := p.Extract(context.Background(), standup)
	require.NoError(t, err)

	want := []Span{
		{Field: labels.FieldYesterday, Text: "I fixed the login bug", Start: 10, End: 31, Score: 0.9},
		{Field: labels.FieldToday, Text: "I will write tests", Start: 38, End: 56, Score: 0.9},
	}
	if diff := cmp.Diff(want, spans, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
	for _, s := range spans {
		assert.Equal(t, standup[s.Start:s.End], s.Text)
	}

	assert.Equal(t, map[labels.Field]string{
		labels.FieldYesterday: "I fixed the login bug",
		labels.FieldToday:     "I will write tests",
	}, Fields(spans))
	assert.Equal(t, int64(1), mc.Snapshot().Extract.Count)
}

func TestExtractSpanBoundaries(t *testing.T) {
	tests := []struct {
		name string
		tags []labels.Tag
		want []Span
	}{
		{
			name: "no fields",
			tags: nil,
			want: []Span{},
		},
		{
			name: "inside after outside opens a span",
			tags: []labels.Tag{o, o, o, iY, iY},
			want: []Span{{Field: labels.FieldYesterday, Text: "fixed", Start: 12, End: 17}},
		},
		{
			name: "begin after begin splits",
			tags: []labels.Tag{o, bY, bY},
			want: []Span{
				{Field: labels.FieldYesterday, Text: "Yesterday", Start: 0, End: 9},
				{Field: labels.FieldYesterday, Text: "I", Start: 10, End: 11},
			},
		},
		{
			name: "field change splits",
			tags: []labels.Tag{o, bY, iT},
			want: []Span{
				{Field: labels.FieldYesterday, Text: "Yesterday", Start: 0, End: 9},
				{Field: labels.FieldToday, Text: "I", Start: 10, End: 11},
			},
		},
		{
			name: "span running to the last piece",
			tags: []labels.Tag{o, o, o, o, o, o, o, o, o, o, o, o, o, bT, iT},
			want: []Span{{Field: labels.FieldToday, Text: "tests", Start: 51, End: 56}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, stubModel{scheme: labels.Default(), tags: tt.tags}, Options{})
			spans, err := p.Extract(context.Background(), standup)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, spans, cmpopts.IgnoreFields(Span{}, "Score")); diff != "" {
				t.Errorf("spans mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractTruncates(t *testing.T) {
	// Room for [CLS] yesterday i fix [SEP].
	p := newPipeline(t, stubModel{scheme: labels.Default(), tags: standupTags}, Options{MaxLength: 5})
	spans, err := p.Extract(context.Background(), standup)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "I fix", spans[0].Text)
}

func TestExtractEmptyText(t *testing.T) {
	p := newPipeline(t, stubModel{scheme: labels.Default(), tags: standupTags}, Options{})
	spans, err := p.Extract(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, spans)
	assert.Empty(t, spans)
}

func TestExtractInvalidUTF8(t *testing.T) {
	p := newPipeline(t, stubModel{scheme: labels.Default()}, Options{})
	_, err := p.Extract(context.Background(), "fixed \xff bug")

	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, -1, ie.Request)
	assert.ErrorIs(t, err, tokenizer.ErrInvalidUTF8)
}

func TestExtractCancelled(t *testing.T) {
	p := newPipeline(t, stubModel{scheme: labels.Default()}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Extract(ctx, standup)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPipeline(t, stubModel{scheme: labels.Default(), tags: standupTags}, Options{Concurrency: 2})
	texts := []string{standup, "bad \xfe input", standup, ""}
	results := p.ExtractBatch(context.Background(), texts)
	require.Len(t, results, len(texts))

	for _, i := range []int{0, 2} {
		require.NoError(t, results[i].Err)
		assert.Len(t, results[i].Spans, 2)
	}
	var ie *InferenceError
	require.True(t, errors.As(results[1].Err, &ie))
	assert.Equal(t, 1, ie.Request)
	assert.Contains(t, ie.Error(), "request 1")

	require.NoError(t, results[3].Err)
	assert.Empty(t, results[3].Spans)
}

func TestNewRejectsMismatchedModel(t *testing.T) {
	m, err := model.NewWindowTagger(17, 3)
	require.NoError(t, err)
	_, err = New(testTokenizer(t), m, labels.Default(), Options{})
	assert.Error(t, err)

	_, err = New(nil, m, labels.Default(), Options{})
	assert.Error(t, err)
}

func TestFieldsJoinsRepeatedFields(t *testing.T) {
	spans := []Span{
		{Field: labels.FieldToday, Text: "write tests"},
		{Field: labels.FieldBlockers, Text: "ci"},
		{Field: labels.FieldToday, Text: "review pr"},
	}
	assert.Equal(t, map[string]string{
		"today":    "write tests review pr",
		"blockers": "ci",
	}, FieldNames(spans))
}

func saveTagger(t *testing.T, m *model.WindowTagger, tok *tokenizer.Tokenizer) string {
	t.Helper()
	scheme := labels.Default()
	names := make([]string, scheme.Len())
	for id, tag := range scheme.Tags() {
		names[id] = tag.String()
	}
	dir := t.TempDir()
	require.NoError(t, artifact.Save(dir, artifact.Artifact{
		Labels:    names,
		Tokenizer: tok,
		Model:     m.State(),
		MaxLength: 24,
		RunID:     "run-1",
	}))
	return dir
}

func TestLoadReproducesPredictions(t *testing.T) {
	tok := testTokenizer(t)
	m, err := model.NewWindowTagger(tok.VocabSize(), labels.Default().Len(), model.WithRandomInit(3, 2))
	require.NoError(t, err)
	dir := saveTagger(t, m, tok)

	direct, err := New(tok, m, labels.Default(), Options{MaxLength: 24, Logger: quietLogger()})
	require.NoError(t, err)
	loaded, err := Load(dir, Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID())

	for _, text := range []string{standup, "Today I will fix the tests", ""} {
		want, err := direct.Extract(context.Background(), text)
		require.NoError(t, err)
		got, err := loaded.Extract(context.Background(), text)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%q: loaded pipeline differs (-direct +loaded):\n%s", text, diff)
		}
	}
}

func TestLoadRejectsClassifier(t *testing.T) {
	tok := testTokenizer(t)
	m, err := model.NewBagClassifier(tok.VocabSize(), labels.Default().Len())
	require.NoError(t, err)
	scheme := labels.Default()
	names := make([]string, scheme.Len())
	for id, tag := range scheme.Tags() {
		names[id] = tag.String()
	}
	dir := t.TempDir()
	require.NoError(t, artifact.Save(dir, artifact.Artifact{Labels: names, Tokenizer: tok, Model: m.State(), MaxLength: 24}))

	_, err = Load(dir, Options{Logger: quietLogger()})
	var le *artifact.LoadError
	assert.True(t, errors.As(err, &le))
}

func TestEvaluate(t *testing.T) {
	tc, err := train.Acquire(train.DeviceCPU, 2)
	require.NoError(t, err)
	defer tc.Release()

	mc := metrics.NewCollector()
	scheme := labels.Default()
	bT, iT := labels.B(labels.FieldToday), labels.I(labels.FieldToday)
	p := newPipeline(t, stubModel{scheme: scheme, tags: []labels.Tag{labels.O, bT, iT, iT, iT}}, Options{Metrics: mc})

	examples := []dataset.Example{{
		Tokens: []string{"I", "fix", "the", "bug"},
		Labels: []string{"B-TODAY", "I-TODAY", "I-TODAY", "I-TODAY"},
	}}
	m, loss, err := p.Evaluate(context.Background(), tc, examples)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.F1, 1e-9)
	assert.Equal(t, 1, m.Gold)
	assert.Greater(t, loss, 0.0)
	assert.Equal(t, int64(1), mc.Snapshot().Evaluate.Count)
}

func TestEvaluateNeedsWordEncoder(t *testing.T) {
	tc, err := train.Acquire(train.DeviceCPU, 1)
	require.NoError(t, err)
	defer tc.Release()

	p, err := New(textOnlyEncoder{testTokenizer(t)}, stubModel{scheme: labels.Default()}, labels.Default(), Options{Logger: quietLogger()})
	require.NoError(t, err)
	_, _, err = p.Evaluate(context.Background(), tc, nil)
	assert.ErrorIs(t, err, ErrNoWordEncoder)
}

type textOnlyEncoder struct{ tok *tokenizer.Tokenizer }

func (e textOnlyEncoder) Encode(text string) (tokenizer.Encoding, error) { return e.tok.Encode(text) }
