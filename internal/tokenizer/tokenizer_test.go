package tokenizer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := New([]string{
		PadToken, UnkToken, ClsToken, SepToken,
		"yesterday", "i", "fix", "##ed", "the", "log", "##in", "bug",
		"today", "will", "write", "test", "##s", ".",
	})
	require.NoError(t, err)
	return tok
}

func TestEncodeWords(t *testing.T) {
	tok := testTokenizer(t)

	enc := tok.EncodeWords([]string{"Yesterday", "fixed", "Login", "bug."})

	assert.Equal(t, []string{"yesterday", "fix", "##ed", "log", "##in", "bug", "."}, enc.Tokens)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 3, 3}, enc.WordIDs)
	assert.Equal(t, 7, enc.Len())
	assert.Nil(t, enc.Offsets)

	for i, id := range enc.IDs {
		assert.Equal(t, enc.Tokens[i], tok.Token(id))
	}
}

func TestEncodeOffsets(t *testing.T) {
	tok := testTokenizer(t)
	text := "I fixed  the bug."

	enc, err := tok.Encode(text)
	require.NoError(t, err)

	want := []Offset{{0, 1}, {2, 5}, {5, 7}, {9, 12}, {13, 16}, {16, 17}}
	if diff := cmp.Diff(want, enc.Offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{0, 1, 1, 2, 3, 4}, enc.WordIDs)
	assert.Equal(t, "fix", text[enc.Offsets[1].Start:enc.Offsets[1].End])
	assert.Equal(t, "ed", text[enc.Offsets[2].Start:enc.Offsets[2].End])
}

func TestEncodeAccentedOffsets(t *testing.T) {
	tok := testTokenizer(t)
	text := "Fixéd"

	enc, err := tok.Encode(text)
	require.NoError(t, err)
	require.Equal(t, []string{"fix", "##ed"}, enc.Tokens)
	assert.Equal(t, []Offset{{0, 3}, {3, 6}}, enc.Offsets)
}

func TestEncodeUnknownWord(t *testing.T) {
	tok := testTokenizer(t)

	enc, err := tok.Encode("the zzz")
	require.NoError(t, err)
	assert.Equal(t, []string{"the", UnkToken}, enc.Tokens)
	assert.Equal(t, []int{UnkID}, enc.IDs[1:])
	assert.Equal(t, Offset{4, 7}, enc.Offsets[1])
}

func TestEncodeInvalidUTF8(t *testing.T) {
	tok := testTokenizer(t)
	_, err := tok.Encode("bug \xff")
	assert.True(t, errors.Is(err, ErrInvalidUTF8))
}

func TestEncodeEmpty(t *testing.T) {
	tok := testTokenizer(t)
	enc, err := tok.Encode(" \t\n")
	require.NoError(t, err)
	assert.Equal(t, 0, enc.Len())
}

func TestWords(t *testing.T) {
	words, offsets := Words("Blocked: CI, again")
	assert.Equal(t, []string{"Blocked", ":", "CI", ",", "again"}, words)
	assert.Equal(t, []Offset{{0, 7}, {7, 8}, {9, 11}, {11, 12}, {13, 18}}, offsets)
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Hello":  "hello",
		"Café":   "cafe",
		"ÜBER":   "uber",
		"naïve":  "naive",
		"already": "already",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNewRejectsBadVocab(t *testing.T) {
	tests := map[string][]string{
		"too short":     {PadToken},
		"wrong order":   {UnkToken, PadToken, ClsToken, SepToken},
		"duplicate":     {PadToken, UnkToken, ClsToken, SepToken, "a", "a"},
		"empty entry":   {PadToken, UnkToken, ClsToken, SepToken, ""},
		"missing specs": {"a", "b", "c", "d"},
	}
	for name, vocab := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(vocab)
			assert.Error(t, err)
		})
	}
}

func TestIsSpecial(t *testing.T) {
	for _, id := range []int{PadID, UnkID, ClsID, SepID} {
		assert.True(t, IsSpecial(id))
	}
	assert.False(t, IsSpecial(4))
	assert.False(t, IsSpecial(-100))
}
