// Package labels defines the closed BIO tag set used to mark standup fields
// and the stable mapping between tags and integer label ids.
package labels

import (
	"fmt"
	"sort"
	"strings"
)

// Field is a semantic category extracted from standup text.
type Field uint8

const (
	// FieldNone is the field of the outside tag.
	FieldNone Field = iota
	FieldDate
	FieldToday
	FieldYesterday
	FieldBlockers
	FieldReport
)

var fieldNames = [...]string{
	FieldNone:      "",
	FieldDate:      "DATE",
	FieldToday:     "TODAY",
	FieldYesterday: "YESTERDAY",
	FieldBlockers:  "BLOCKERS",
	FieldReport:    "REPORT",
}

// Fields lists every real field in declaration order.
func Fields() []Field {
	return []Field{FieldDate, FieldToday, FieldYesterday, FieldBlockers, FieldReport}
}

// String returns the upper-case field name, e.g. "TODAY".
func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("Field(%d)", uint8(f))
}

// ParseField parses an upper- or lower-case field name.
func ParseField(s string) (Field, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for _, f := range Fields() {
		if fieldNames[f] == up {
			return f, nil
		}
	}
	return FieldNone, fmt.Errorf("unknown field %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(b []byte) error {
	parsed, err := ParseField(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Prefix is the BIO position marker of a tag.
type Prefix uint8

const (
	Outside Prefix = iota
	Begin
	Inside
)

// Tag is one value of the closed tag set. The zero value is O.
type Tag struct {
	Prefix Prefix
	Field  Field
}

// O is the shared outside tag.
var O = Tag{}

// B returns the begin tag of f.
func B(f Field) Tag { return Tag{Prefix: Begin, Field: f} }

// I returns the inside tag of f.
func I(f Field) Tag { return Tag{Prefix: Inside, Field: f} }

// Valid reports whether t belongs to the closed tag set.
func (t Tag) Valid() bool {
	switch t.Prefix {
	case Outside:
		return t.Field == FieldNone
	case Begin, Inside:
		return t.Field >= FieldDate && t.Field <= FieldReport
	default:
		return false
	}
}

// IsBegin reports whether t opens a span.
func (t Tag) IsBegin() bool { return t.Prefix == Begin }

// IsOutside reports whether t is O.
func (t Tag) IsOutside() bool { return t.Prefix == Outside }

// String renders the tag as "O", "B-TODAY", "I-DATE", ...
func (t Tag) String() string {
	switch t.Prefix {
	case Outside:
		return "O"
	case Begin:
		return "B-" + t.Field.String()
	case Inside:
		return "I-" + t.Field.String()
	}
	return fmt.Sprintf("Tag(%d,%d)", t.Prefix, t.Field)
}

// ParseTag parses a tag string. Unknown strings fail with *UnknownTagError.
func ParseTag(s string) (Tag, error) {
	if s == "O" {
		return O, nil
	}
	prefix, name, ok := strings.Cut(s, "-")
	if !ok {
		return O, &UnknownTagError{Tag: s}
	}
	var p Prefix
	switch prefix {
	case "B":
		p = Begin
	case "I":
		p = Inside
	default:
		return O, &UnknownTagError{Tag: s}
	}
	for _, f := range Fields() {
		if fieldNames[f] == name {
			return Tag{Prefix: p, Field: f}, nil
		}
	}
	return O, &UnknownTagError{Tag: s}
}

// ContinuationOf returns the tag a non-first subword of a word tagged t
// carries: B-X becomes I-X, I-X and O are returned unchanged.
func ContinuationOf(t Tag) Tag {
	if t.Prefix == Begin {
		return Tag{Prefix: Inside, Field: t.Field}
	}
	return t
}

// UnknownTagError reports a tag string outside the closed set.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag %q", e.Tag)
}

// defaultOrder is the label order of the original training run. Ids are
// positions in this slice.
var defaultOrder = []Tag{
	O,
	B(FieldToday), I(FieldToday),
	B(FieldYesterday), I(FieldYesterday),
	B(FieldBlockers), I(FieldBlockers),
	B(FieldReport), I(FieldReport),
	B(FieldDate), I(FieldDate),
}

// Scheme is a fixed bijection between the closed tag set and label ids.
// A Scheme is immutable and safe for concurrent use.
type Scheme struct {
	tags []Tag
	ids  map[Tag]int
}

// Default returns the scheme used for training new models.
func Default() *Scheme {
	s, err := newScheme(defaultOrder)
	if err != nil {
		panic(err)
	}
	return s
}

func newScheme(order []Tag) (*Scheme, error) {
	s := &Scheme{
		tags: make([]Tag, len(order)),
		ids:  make(map[Tag]int, len(order)),
	}
	for id, t := range order {
		if !t.Valid() {
			return nil, &UnknownTagError{Tag: t.String()}
		}
		if _, dup := s.ids[t]; dup {
			return nil, fmt.Errorf("duplicate tag %s", t)
		}
		s.tags[id] = t
		s.ids[t] = id
	}
	if len(s.tags) != 1+2*len(Fields()) {
		return nil, fmt.Errorf("tag mapping has %d tags, want %d", len(s.tags), 1+2*len(Fields()))
	}
	return s, nil
}

// FromID2Label rebuilds a scheme from a persisted id → tag-string map.
// The map must cover ids 0..n-1 and be a permutation of the closed tag set.
func FromID2Label(m map[int]string) (*Scheme, error) {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	order := make([]Tag, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("label ids are not contiguous: missing id %d", i)
		}
		t, err := ParseTag(m[id])
		if err != nil {
			return nil, err
		}
		order[i] = t
	}
	return newScheme(order)
}

// Len returns the number of tags.
func (s *Scheme) Len() int { return len(s.tags) }

// Tags returns the tags in id order.
func (s *Scheme) Tags() []Tag {
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// ID returns the label id of t.
func (s *Scheme) ID(t Tag) (int, error) {
	id, ok := s.ids[t]
	if !ok {
		return 0, &UnknownTagError{Tag: t.String()}
	}
	return id, nil
}

// MustID is ID for tags known to be valid.
func (s *Scheme) MustID(t Tag) int {
	id, err := s.ID(t)
	if err != nil {
		panic(err)
	}
	return id
}

// Tag returns the tag with label id.
func (s *Scheme) Tag(id int) (Tag, error) {
	if id < 0 || id >= len(s.tags) {
		return O, fmt.Errorf("label id %d out of range [0,%d)", id, len(s.tags))
	}
	return s.tags[id], nil
}

// IDOf parses a tag string and returns its id.
func (s *Scheme) IDOf(label string) (int, error) {
	t, err := ParseTag(label)
	if err != nil {
		return 0, err
	}
	return s.ID(t)
}

// ID2Label returns the id → tag-string map persisted with model artifacts.
func (s *Scheme) ID2Label() map[int]string {
	m := make(map[int]string, len(s.tags))
	for id, t := range s.tags {
		m[id] = t.String()
	}
	return m
}

// Label2ID returns the tag-string → id map persisted with model artifacts.
func (s *Scheme) Label2ID() map[string]int {
	m := make(map[string]int, len(s.tags))
	for id, t := range s.tags {
		m[t.String()] = id
	}
	return m
}
