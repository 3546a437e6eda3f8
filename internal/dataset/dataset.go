// Package dataset loads and validates word-level tagged standup examples
// and splits them into train and validation partitions.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/raphaelgruber/scrumbot/internal/labels"
)

// Example is one tagged sentence: a token sequence and one tag per token.
type Example struct {
	Tokens []string `json:"tokens"`
	Labels []string `json:"labels"`

	// Index is the position of the record in its source. Load sets it and
	// Split keeps it, so errors raised after shuffling still name the
	// record in the file.
	Index int `json:"-"`
}

// Tags parses the example labels. Call Validate first.
func (e Example) Tags() ([]labels.Tag, error) {
	tags := make([]labels.Tag, len(e.Labels))
	for i, l := range e.Labels {
		t, err := labels.ParseTag(l)
		if err != nil {
			return nil, err
		}
		tags[i] = t
	}
	return tags, nil
}

// SchemaError reports a malformed example.
type SchemaError struct {
	Index  int
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("example %d: %s", e.Index, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Validate checks one example against the tag set and BIO well-formedness.
// index is only used for error reporting.
func Validate(index int, ex Example) error {
	if len(ex.Tokens) == 0 {
		return &SchemaError{Index: index, Reason: "no tokens"}
	}
	if len(ex.Tokens) != len(ex.Labels) {
		return &SchemaError{
			Index:  index,
			Reason: fmt.Sprintf("%d tokens but %d labels", len(ex.Tokens), len(ex.Labels)),
		}
	}

	prev := labels.O
	for i, tok := range ex.Tokens {
		if blank(tok) {
			return &SchemaError{Index: index, Reason: fmt.Sprintf("token %d is blank", i)}
		}
		tag, err := labels.ParseTag(ex.Labels[i])
		if err != nil {
			return &SchemaError{Index: index, Reason: fmt.Sprintf("token %d: %v", i, err), Err: err}
		}
		// I-X must continue a B-X or I-X run.
		if tag.Prefix == labels.Inside && (prev.IsOutside() || prev.Field != tag.Field) {
			return &SchemaError{
				Index:  index,
				Reason: fmt.Sprintf("token %d: %s does not continue %s", i, tag, prev),
			}
		}
		prev = tag
	}
	return nil
}

// LoadOptions controls how invalid examples are handled.
type LoadOptions struct {
	// SkipInvalid drops malformed examples instead of failing on the first one.
	SkipInvalid bool
	Logger      *slog.Logger
}

// Report summarizes a load.
type Report struct {
	Total    int
	Accepted int
	Rejected []*SchemaError
}

// LoadFile reads examples from a JSON array or JSON Lines file.
func LoadFile(path string, opts LoadOptions) ([]Example, *Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads examples from r. The input is either a JSON array of records or
// one record per line.
func Load(r io.Reader, opts LoadOptions) ([]Example, *Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := decode(r)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Total: len(raw)}
	out := make([]Example, 0, len(raw))
	for i, ex := range raw {
		ex.Index = i
		if err := Validate(i, ex); err != nil {
			se := err.(*SchemaError)
			if !opts.SkipInvalid {
				return nil, report, se
			}
			logger.Warn("skipping invalid example", "index", i, "reason", se.Reason)
			report.Rejected = append(report.Rejected, se)
			continue
		}
		out = append(out, ex)
	}
	report.Accepted = len(out)

	logger.Info("dataset loaded", "total", report.Total, "accepted", report.Accepted, "rejected", len(report.Rejected))
	return out, report, nil
}

// blank reports whether tok has no character that survives tokenization.
// Spaces, control and format characters (such as U+200B) are dropped by
// the word splitter and nonspacing marks by normalization.
func blank(tok string) bool {
	for _, r := range tok {
		if r == utf8.RuneError || unicode.IsSpace(r) || unicode.In(r, unicode.Cc, unicode.Cf, unicode.Mn) {
			continue
		}
		return false
	}
	return true
}

func decode(r io.Reader) ([]Example, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	if first == '[' {
		var out []Example
		if err := json.NewDecoder(br).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		return out, nil
	}

	var out []Example
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var ex Example
		if err := json.Unmarshal(b, &ex); err != nil {
			return nil, fmt.Errorf("decode dataset line %d: %w", line, err)
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0], nil
		}
	}
}

// Split partitions examples into train and validation sets. The validation
// size is ceil(p*n); the assignment depends only on seed and n.
func Split[T any](examples []T, p float64, seed uint64) (train, validation []T, err error) {
	if !(p > 0 && p < 1) {
		return nil, nil, fmt.Errorf("validation fraction %v not in (0,1)", p)
	}
	n := len(examples)
	nVal := int(math.Ceil(p * float64(n)))
	if nVal == 0 || nVal >= n {
		return nil, nil, fmt.Errorf("cannot split %d examples with fraction %v", n, p)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	validation = make([]T, 0, nVal)
	train = make([]T, 0, n-nVal)
	for i, idx := range perm {
		if i < nVal {
			validation = append(validation, examples[idx])
		} else {
			train = append(train, examples[idx])
		}
	}
	return train, validation, nil
}
