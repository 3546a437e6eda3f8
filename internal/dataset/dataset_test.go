package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/scrumbot/internal/labels"
)

const sample = `[
  {"tokens": ["Yesterday", "I", "fixed", "the", "bug"], "labels": ["O", "B-YESTERDAY", "I-YESTERDAY", "I-YESTERDAY", "I-YESTERDAY"]},
  {"tokens": ["Today", "tests"], "labels": ["O", "B-TODAY"]},
  {"tokens": ["No", "blockers"], "labels": ["O", "O"]}
]`

func TestLoadArray(t *testing.T) {
	examples, report, err := Load(strings.NewReader(sample), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Accepted)
	assert.Empty(t, report.Rejected)
	assert.Equal(t, []string{"Today", "tests"}, examples[1].Tokens)
}

func TestLoadJSONLines(t *testing.T) {
	in := `{"tokens": ["on", "monday"], "labels": ["O", "B-DATE"]}

{"tokens": ["blocked", "by", "infra"], "labels": ["B-BLOCKERS", "I-BLOCKERS", "I-BLOCKERS"]}
`
	examples, _, err := Load(strings.NewReader(in), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, examples, 2)

	tags, err := examples[1].Tags()
	require.NoError(t, err)
	assert.Equal(t, []labels.Tag{
		labels.B(labels.FieldBlockers), labels.I(labels.FieldBlockers), labels.I(labels.FieldBlockers),
	}, tags)
}

func TestLoadEmpty(t *testing.T) {
	examples, report, err := Load(strings.NewReader("  \n"), LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, examples)
	assert.Equal(t, 0, report.Total)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	examples, _, err := LoadFile(path, LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, examples, 3)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), LoadOptions{})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ex      Example
		wantErr bool
	}{
		{"valid", Example{Tokens: []string{"a", "b"}, Labels: []string{"B-DATE", "I-DATE"}}, false},
		{"all outside", Example{Tokens: []string{"a"}, Labels: []string{"O"}}, false},
		{"length mismatch", Example{Tokens: []string{"a", "b"}, Labels: []string{"O"}}, true},
		{"more labels", Example{Tokens: []string{"a"}, Labels: []string{"O", "O"}}, true},
		{"empty", Example{}, true},
		{"blank token", Example{Tokens: []string{"a", " "}, Labels: []string{"O", "O"}}, true},
		{"zero width space", Example{Tokens: []string{"a", "\u200b"}, Labels: []string{"O", "O"}}, true},
		{"lone combining mark", Example{Tokens: []string{"\u0301"}, Labels: []string{"O"}}, true},
		{"control character", Example{Tokens: []string{"\x07"}, Labels: []string{"O"}}, true},
		{"accented word", Example{Tokens: []string{"cafe\u0301"}, Labels: []string{"O"}}, false},
		{"unknown tag", Example{Tokens: []string{"a"}, Labels: []string{"B-WEATHER"}}, true},
		{"inside after outside", Example{Tokens: []string{"a", "b"}, Labels: []string{"O", "I-TODAY"}}, true},
		{"inside at start", Example{Tokens: []string{"a"}, Labels: []string{"I-TODAY"}}, true},
		{"inside of other field", Example{Tokens: []string{"a", "b"}, Labels: []string{"B-TODAY", "I-DATE"}}, true},
		{"begin after begin", Example{Tokens: []string{"a", "b"}, Labels: []string{"B-TODAY", "B-TODAY"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(7, tt.ex)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var se *SchemaError
			require.True(t, errors.As(err, &se), "expected SchemaError, got %v", err)
			assert.Equal(t, 7, se.Index)
			assert.Contains(t, se.Error(), "example 7")
		})
	}
}

func TestValidateUnknownTagUnwraps(t *testing.T) {
	err := Validate(0, Example{Tokens: []string{"a"}, Labels: []string{"B-WEATHER"}})
	var unknown *labels.UnknownTagError
	assert.True(t, errors.As(err, &unknown))
}

func TestLoadRejectsMismatchedLengths(t *testing.T) {
	in := `[{"tokens": ["ok"], "labels": ["O"]}, {"tokens": ["a", "b"], "labels": ["O"]}]`

	_, _, err := Load(strings.NewReader(in), LoadOptions{})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Index)
}

func TestLoadSkipInvalid(t *testing.T) {
	in := `[
	  {"tokens": ["ok"], "labels": ["O"]},
	  {"tokens": ["a", "b"], "labels": ["O"]},
	  {"tokens": ["x"], "labels": ["I-DATE"]},
	  {"tokens": ["fine"], "labels": ["B-REPORT"]}
	]`
	examples, report, err := Load(strings.NewReader(in), LoadOptions{SkipInvalid: true})
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Accepted)
	require.Len(t, report.Rejected, 2)
	assert.Equal(t, 1, report.Rejected[0].Index)
	assert.Equal(t, 2, report.Rejected[1].Index)
	assert.Equal(t, []int{0, 3}, []int{examples[0].Index, examples[1].Index})

	// Accepted examples are never truncated.
	for _, ex := range examples {
		assert.Equal(t, len(ex.Tokens), len(ex.Labels))
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	_, _, err := Load(strings.NewReader(`[{"tokens": [`), LoadOptions{})
	assert.Error(t, err)
}

func numbered(n int) []Example {
	out := make([]Example, n)
	for i := range out {
		out[i] = Example{Tokens: []string{fmt.Sprintf("w%d", i)}, Labels: []string{"O"}}
	}
	return out
}

func TestSplit(t *testing.T) {
	examples := numbered(50)

	train, val, err := Split(examples, 0.1, 42)
	require.NoError(t, err)
	assert.Len(t, val, 5)
	assert.Len(t, train, 45)

	seen := map[string]int{}
	for _, ex := range append(append([]Example{}, train...), val...) {
		seen[ex.Tokens[0]]++
	}
	assert.Len(t, seen, 50)
	for tok, n := range seen {
		assert.Equal(t, 1, n, "example %s appears %d times", tok, n)
	}

	// Same seed, same split.
	train2, val2, err := Split(examples, 0.1, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, val, val2)

	// Different seed, (almost surely) different split.
	_, val3, err := Split(examples, 0.1, 7)
	require.NoError(t, err)
	assert.NotEqual(t, val, val3)
}

func TestSplitKeepsSourceIndex(t *testing.T) {
	var in strings.Builder
	for i := range 20 {
		fmt.Fprintf(&in, "{\"tokens\": [\"w%d\"], \"labels\": [\"O\"]}\n", i)
	}
	examples, _, err := Load(strings.NewReader(in.String()), LoadOptions{})
	require.NoError(t, err)

	train, val, err := Split(examples, 0.25, 42)
	require.NoError(t, err)
	for _, ex := range append(train, val...) {
		assert.Equal(t, fmt.Sprintf("w%d", ex.Index), ex.Tokens[0])
	}
}

func TestSplitRoundsUp(t *testing.T) {
	train, val, err := Split(numbered(11), 0.1, 1)
	require.NoError(t, err)
	assert.Len(t, val, 2)
	assert.Len(t, train, 9)
}

func TestSplitDoesNotModifyInput(t *testing.T) {
	examples := numbered(10)
	before := make([]Example, len(examples))
	copy(before, examples)

	_, _, err := Split(examples, 0.3, 3)
	require.NoError(t, err)
	assert.Equal(t, before, examples)
}

func TestSplitErrors(t *testing.T) {
	for _, p := range []float64{0, 1, -0.5, 1.5} {
		_, _, err := Split(numbered(10), p, 1)
		assert.Error(t, err, "p=%v", p)
	}
	_, _, err := Split(numbered(1), 0.5, 1)
	assert.Error(t, err)
	_, _, err = Split([]Example(nil), 0.5, 1)
	assert.Error(t, err)
}
