// Package tokenizer implements an uncased WordPiece tokenizer with word
// indices and byte offsets.
package tokenizer

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Special tokens. Their ids are fixed: every vocabulary starts with them.
const (
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"

	PadID = 0
	UnkID = 1
	ClsID = 2
	SepID = 3
)

// ContinuationPrefix marks a piece that continues the previous piece of the
// same word.
const ContinuationPrefix = "##"

// DefaultMaxInputCharsPerWord is the word length above which a word maps to
// a single [UNK].
const DefaultMaxInputCharsPerWord = 100

// ErrInvalidUTF8 is returned by Encode for text that is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("text is not valid UTF-8")

// Offset is a half-open byte range.
type Offset struct {
	Start int
	End   int
}

// Encoding is the result of tokenizing one input, without special tokens.
// All slices have the same length.
type Encoding struct {
	IDs    []int
	Tokens []string
	// WordIDs maps every piece to the input word (EncodeWords) or the
	// pre-tokenized word (Encode) it came from.
	WordIDs []int
	// Offsets are byte ranges into the encoded text. Only Encode fills them.
	Offsets []Offset
}

// Len returns the number of pieces.
func (e Encoding) Len() int { return len(e.IDs) }

// Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	vocab           map[string]int
	tokens          []string
	maxCharsPerWord int
}

// New builds a tokenizer from an ordered vocabulary. The first four entries
// must be [PAD], [UNK], [CLS] and [SEP] in that order.
func New(vocab []string) (*Tokenizer, error) {
	specials := []string{PadToken, UnkToken, ClsToken, SepToken}
	if len(vocab) < len(specials) {
		return nil, fmt.Errorf("vocabulary has %d entries, need at least %d", len(vocab), len(specials))
	}
	for i, s := range specials {
		if vocab[i] != s {
			return nil, fmt.Errorf("vocabulary entry %d is %q, want %q", i, vocab[i], s)
		}
	}

	t := &Tokenizer{
		vocab:           make(map[string]int, len(vocab)),
		tokens:          make([]string, len(vocab)),
		maxCharsPerWord: DefaultMaxInputCharsPerWord,
	}
	for i, tok := range vocab {
		if tok == "" {
			return nil, fmt.Errorf("vocabulary entry %d is empty", i)
		}
		if _, dup := t.vocab[tok]; dup {
			return nil, fmt.Errorf("duplicate vocabulary entry %q", tok)
		}
		t.vocab[tok] = i
		t.tokens[i] = tok
	}
	return t, nil
}

// VocabSize returns the number of vocabulary entries.
func (t *Tokenizer) VocabSize() int { return len(t.tokens) }

// Vocab returns the vocabulary in id order.
func (t *Tokenizer) Vocab() []string {
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// ID returns the id of tok.
func (t *Tokenizer) ID(tok string) (int, bool) {
	id, ok := t.vocab[tok]
	return id, ok
}

// Token returns the vocabulary entry of id, or [UNK] when out of range.
func (t *Tokenizer) Token(id int) string {
	if id < 0 || id >= len(t.tokens) {
		return UnkToken
	}
	return t.tokens[id]
}

// IsSpecial reports whether id is one of the four special tokens.
func IsSpecial(id int) bool { return id >= PadID && id <= SepID }

// EncodeWords tokenizes pre-split words. Each word may yield several pieces
// (punctuation is split off, long words become subwords); every piece
// carries the index of the word it came from. Offsets are not filled.
func (t *Tokenizer) EncodeWords(words []string) Encoding {
	var enc Encoding
	for wi, w := range words {
		for _, span := range splitWords(w) {
			for _, p := range t.wordPiece(w[span.Start:span.End]) {
				enc.IDs = append(enc.IDs, p.id)
				enc.Tokens = append(enc.Tokens, p.token)
				enc.WordIDs = append(enc.WordIDs, wi)
			}
		}
	}
	return enc
}

// Encode tokenizes raw text. Word ids index the whitespace and punctuation
// split of text; offsets are byte ranges into text.
func (t *Tokenizer) Encode(text string) (Encoding, error) {
	if !utf8.ValidString(text) {
		return Encoding{}, ErrInvalidUTF8
	}
	var enc Encoding
	for wi, span := range splitWords(text) {
		word := text[span.Start:span.End]
		for _, p := range t.wordPiece(word) {
			enc.IDs = append(enc.IDs, p.id)
			enc.Tokens = append(enc.Tokens, p.token)
			enc.WordIDs = append(enc.WordIDs, wi)
			enc.Offsets = append(enc.Offsets, Offset{Start: span.Start + p.start, End: span.Start + p.end})
		}
	}
	return enc, nil
}

// Words returns the pre-tokenized words of text with their byte offsets.
func Words(text string) ([]string, []Offset) {
	spans := splitWords(text)
	words := make([]string, len(spans))
	for i, s := range spans {
		words[i] = text[s.Start:s.End]
	}
	return words, spans
}

type piece struct {
	id    int
	token string
	// start and end are byte offsets within the original word.
	start, end int
}

// wordPiece runs greedy longest-match-first over one pre-tokenized word.
func (t *Tokenizer) wordPiece(word string) []piece {
	normalized := Normalize(word)
	whole := []piece{{id: UnkID, token: UnkToken, start: 0, end: len(word)}}

	nr := []rune(normalized)
	if len(nr) == 0 {
		return nil
	}
	if len(nr) > t.maxCharsPerWord {
		return whole
	}

	// Piece offsets can be mapped back rune by rune only when normalization
	// kept the rune count; otherwise every piece spans the whole word.
	var bounds []int
	if utf8.RuneCountInString(word) == len(nr) {
		bounds = make([]int, 0, len(nr)+1)
		for i := range word {
			bounds = append(bounds, i)
		}
		bounds = append(bounds, len(word))
	}

	var out []piece
	for start := 0; start < len(nr); {
		end := len(nr)
		matched := -1
		var tok string
		for end > start {
			cand := string(nr[start:end])
			if start > 0 {
				cand = ContinuationPrefix + cand
			}
			if id, ok := t.vocab[cand]; ok {
				matched = id
				tok = cand
				break
			}
			end--
		}
		if matched < 0 {
			return whole
		}
		p := piece{id: matched, token: tok, start: 0, end: len(word)}
		if bounds != nil {
			p.start, p.end = bounds[start], bounds[end]
		}
		out = append(out, p)
		start = end
	}
	return out
}

// Normalize lower-cases s and strips accents.
func Normalize(s string) string {
	lower := toLower(s)
	out, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), lower)
	if err != nil {
		return lower
	}
	return out
}

func toLower(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		b = append(b, unicode.ToLower(r))
	}
	return string(b)
}

// splitWords splits on whitespace and isolates punctuation and CJK
// characters. Control characters are dropped.
func splitWords(text string) []Offset {
	var spans []Offset
	start := -1
	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, Offset{Start: start, End: end})
			start = -1
		}
	}
	for i, r := range text {
		size := utf8.RuneLen(r)
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case r == 0 || r == utf8.RuneError || unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			flush(i)
		case isPunct(r) || isCJK(r):
			flush(i)
			spans = append(spans, Offset{Start: i, End: i + size})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return spans
}

func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
