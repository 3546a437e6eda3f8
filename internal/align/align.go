// Package align converts word-level tagged examples into fixed-length
// subword-level training examples.
package align

import (
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

// IgnoreIndex marks positions excluded from loss and metrics.
const IgnoreIndex = model.IgnoreLabel

// NoWord is the word id of special and padding positions.
const NoWord = -1

// Example is a subword-aligned example. All slices have length L.
type Example struct {
	InputIDs      []int
	AttentionMask []int
	LabelIDs      []int
	WordIDs       []int

	// Source is the dataset index of the tagged example.
	Source int
}

// Len returns the sequence length.
func (e Example) Len() int { return len(e.InputIDs) }

// AlignmentError reports a piece whose word index does not belong to the
// example, or a word that produced no pieces. Position is -1 in the
// second case.
type AlignmentError struct {
	Example  int
	Position int
	WordID   int
	Words    int
}

func (e *AlignmentError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("example %d: word %d of %d produced no subword pieces",
			e.Example, e.WordID, e.Words)
	}
	return fmt.Sprintf("example %d: position %d refers to word %d, example has %d words",
		e.Example, e.Position, e.WordID, e.Words)
}

// WordEncoder tokenizes pre-split words, reporting the source word of
// every piece.
type WordEncoder interface {
	EncodeWords(words []string) tokenizer.Encoding
}

// Aligner turns tagged examples into fixed-length subword examples.
type Aligner struct {
	enc    WordEncoder
	scheme *labels.Scheme
	maxLen int
}

// New returns an aligner producing sequences of exactly maxLen positions.
func New(enc WordEncoder, scheme *labels.Scheme, maxLen int) (*Aligner, error) {
	if maxLen < 1 {
		return nil, fmt.Errorf("max length must be at least 1, got %d", maxLen)
	}
	return &Aligner{enc: enc, scheme: scheme, maxLen: maxLen}, nil
}

// MaxLen returns the sequence length L.
func (a *Aligner) MaxLen() int { return a.maxLen }

// Align converts one example. index is only used in errors.
func (a *Aligner) Align(index int, ex dataset.Example) (Example, error) {
	tags, err := ex.Tags()
	if err != nil {
		return Example{}, &dataset.SchemaError{Index: index, Reason: err.Error(), Err: err}
	}
	enc := a.enc.EncodeWords(ex.Tokens)
	if err := covered(index, enc.WordIDs, len(tags)); err != nil {
		return Example{}, err
	}
	ids, wordIDs := Frame(enc.IDs, enc.WordIDs, a.maxLen)

	out := Example{
		InputIDs:      ids,
		AttentionMask: make([]int, a.maxLen),
		LabelIDs:      make([]int, a.maxLen),
		WordIDs:       wordIDs,
		Source:        index,
	}

	previous := -2
	for i, w := range wordIDs {
		if ids[i] != tokenizer.PadID {
			out.AttentionMask[i] = 1
		}
		switch {
		case w == NoWord:
			out.LabelIDs[i] = IgnoreIndex
		case w < 0 || w >= len(tags):
			return Example{}, &AlignmentError{Example: index, Position: i, WordID: w, Words: len(tags)}
		case w != previous:
			out.LabelIDs[i] = a.scheme.MustID(tags[w])
		default:
			out.LabelIDs[i] = a.scheme.MustID(labels.ContinuationOf(tags[w]))
		}
		previous = w
	}
	return out, nil
}

// covered checks that every piece belongs to a word of the example and
// that every word has at least one piece.
func covered(index int, pieceWordIDs []int, words int) error {
	seen := make([]bool, words)
	for p, w := range pieceWordIDs {
		if w < 0 || w >= words {
			// +1 for [CLS]
			return &AlignmentError{Example: index, Position: p + 1, WordID: w, Words: words}
		}
		seen[w] = true
	}
	for w, ok := range seen {
		if !ok {
			return &AlignmentError{Example: index, Position: -1, WordID: w, Words: words}
		}
	}
	return nil
}

// MapOptions controls Map.
type MapOptions struct {
	// SkipInvalid drops examples that fail to align and lists them in
	// Report.Rejected instead of failing the whole batch.
	SkipInvalid bool
	Logger      *slog.Logger
}

// Report summarizes a batch alignment.
type Report struct {
	Total    int
	Rejected []error
}

// Map aligns every example, failing on the first bad one. Errors name
// the example by its dataset index.
func (a *Aligner) Map(examples []dataset.Example) ([]Example, error) {
	out, _, err := a.MapWith(examples, MapOptions{})
	return out, err
}

// MapWith aligns every example according to opts.
func (a *Aligner) MapWith(examples []dataset.Example, opts MapOptions) ([]Example, *Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := &Report{Total: len(examples)}
	out := make([]Example, 0, len(examples))
	for _, ex := range examples {
		aligned, err := a.Align(ex.Index, ex)
		if err != nil {
			if !opts.SkipInvalid {
				return nil, report, err
			}
			logger.Warn("skipping unalignable example", "index", ex.Index, "error", err)
			report.Rejected = append(report.Rejected, err)
			continue
		}
		out = append(out, aligned)
	}
	return out, report, nil
}

// Frame wraps piece ids in [CLS] ... [SEP], truncating and padding to
// exactly maxLen positions. Word ids of special positions are NoWord.
// For maxLen < 2 the framed sequence is cut to maxLen.
func Frame(pieceIDs, pieceWordIDs []int, maxLen int) (ids, wordIDs []int) {
	keep := len(pieceIDs)
	if keep > maxLen-2 {
		keep = max(maxLen-2, 0)
	}

	ids = make([]int, 0, maxLen+2)
	wordIDs = make([]int, 0, maxLen+2)
	ids = append(ids, tokenizer.ClsID)
	wordIDs = append(wordIDs, NoWord)
	ids = append(ids, pieceIDs[:keep]...)
	wordIDs = append(wordIDs, pieceWordIDs[:keep]...)
	ids = append(ids, tokenizer.SepID)
	wordIDs = append(wordIDs, NoWord)

	if len(ids) > maxLen {
		ids, wordIDs = ids[:maxLen], wordIDs[:maxLen]
	}
	for len(ids) < maxLen {
		ids = append(ids, tokenizer.PadID)
		wordIDs = append(wordIDs, NoWord)
	}
	return ids, wordIDs
}

// Collapse reconstructs word-level tags from the first piece of every word.
// Words cut off by truncation are absent from the result.
func Collapse(ex Example, scheme *labels.Scheme) ([]labels.Tag, error) {
	var out []labels.Tag
	previous := -2
	for i, w := range ex.WordIDs {
		if w != NoWord && w != previous {
			if ex.LabelIDs[i] == IgnoreIndex {
				return nil, fmt.Errorf("position %d starts word %d but is ignored", i, w)
			}
			tag, err := scheme.Tag(ex.LabelIDs[i])
			if err != nil {
				return nil, err
			}
			out = append(out, tag)
		}
		previous = w
	}
	return out, nil
}

// Words returns how many distinct words are present in ex.
func Words(ex Example) int {
	n := 0
	previous := -2
	for _, w := range ex.WordIDs {
		if w != NoWord && w != previous {
			n++
		}
		previous = w
	}
	return n
}
