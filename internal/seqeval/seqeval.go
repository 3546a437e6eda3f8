// Package seqeval scores BIO tag sequences at span level: a predicted span
// counts only when start, end and field all match a reference span.
package seqeval

import (
	"fmt"
	"strings"
)

// Chunk is a tagged span over token positions [Start, End).
type Chunk struct {
	Field string
	Start int
	End   int
}

// FieldScore holds span counts and scores for one field.
type FieldScore struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Metrics is the result of Evaluate.
type Metrics struct {
	Precision float64               `json:"precision"`
	Recall    float64               `json:"recall"`
	F1        float64               `json:"f1"`
	Accuracy  float64               `json:"accuracy"`
	Fields    map[string]FieldScore `json:"fields,omitempty"`

	TruePositives int `json:"true_positives"`
	Predicted     int `json:"predicted"`
	Gold          int `json:"gold"`
}

func split(tag string) (prefix, field string) {
	if tag == "O" || tag == "" {
		return "O", ""
	}
	p, f, ok := strings.Cut(tag, "-")
	if !ok {
		return tag, ""
	}
	return p, f
}

func endOfChunk(prevTag, tag, prevField, field string) bool {
	switch {
	case prevTag == "B" && (tag == "B" || tag == "O"):
		return true
	case prevTag == "I" && (tag == "B" || tag == "O"):
		return true
	case prevTag != "O" && prevField != field:
		return true
	}
	return false
}

func startOfChunk(prevTag, tag, prevField, field string) bool {
	switch {
	case tag == "B":
		return true
	case prevTag == "O" && tag == "I":
		return true
	case tag != "O" && prevField != field:
		return true
	}
	return false
}

// Chunks extracts spans from one tag sequence. A stray I- opens a span.
func Chunks(seq []string) []Chunk {
	var out []Chunk
	prevTag, prevField := "O", ""
	start := -1
	for i, t := range append(append([]string(nil), seq...), "O") {
		tag, field := split(t)
		if start >= 0 && endOfChunk(prevTag, tag, prevField, field) {
			out = append(out, Chunk{Field: prevField, Start: start, End: i})
			start = -1
		}
		if startOfChunk(prevTag, tag, prevField, field) {
			start = i
		}
		prevTag, prevField = tag, field
	}
	return out
}

// Evaluate scores predicted sequences against reference sequences.
// Precision, recall and F1 are 0 when their denominator is 0.
func Evaluate(gold, pred [][]string) (Metrics, error) {
	if len(gold) != len(pred) {
		return Metrics{}, fmt.Errorf("got %d reference and %d predicted sequences", len(gold), len(pred))
	}

	type key struct {
		seq int
		Chunk
	}
	goldSet := map[key]bool{}
	predSet := map[key]bool{}
	correctTokens, totalTokens := 0, 0

	for s := range gold {
		if len(gold[s]) != len(pred[s]) {
			return Metrics{}, fmt.Errorf("sequence %d: %d reference and %d predicted tags", s, len(gold[s]), len(pred[s]))
		}
		for i := range gold[s] {
			totalTokens++
			if gold[s][i] == pred[s][i] {
				correctTokens++
			}
		}
		for _, c := range Chunks(gold[s]) {
			goldSet[key{s, c}] = true
		}
		for _, c := range Chunks(pred[s]) {
			predSet[key{s, c}] = true
		}
	}

	perField := map[string]*[3]int{} // tp, pred, gold
	counts := func(f string) *[3]int {
		c, ok := perField[f]
		if !ok {
			c = &[3]int{}
			perField[f] = c
		}
		return c
	}

	m := Metrics{Gold: len(goldSet), Predicted: len(predSet)}
	for k := range predSet {
		counts(k.Field)[1]++
		if goldSet[k] {
			m.TruePositives++
			counts(k.Field)[0]++
		}
	}
	for k := range goldSet {
		counts(k.Field)[2]++
	}

	m.Precision, m.Recall, m.F1 = score(m.TruePositives, m.Predicted, m.Gold)
	if totalTokens > 0 {
		m.Accuracy = float64(correctTokens) / float64(totalTokens)
	}

	if len(perField) > 0 {
		m.Fields = make(map[string]FieldScore, len(perField))
	}
	for f, c := range perField {
		p, r, f1 := score(c[0], c[1], c[2])
		m.Fields[f] = FieldScore{Precision: p, Recall: r, F1: f1, Support: c[2]}
	}
	return m, nil
}

func score(tp, pred, gold int) (p, r, f1 float64) {
	if pred > 0 {
		p = float64(tp) / float64(pred)
	}
	if gold > 0 {
		r = float64(tp) / float64(gold)
	}
	if p+r > 0 {
		f1 = 2 * p * r / (p + r)
	}
	return p, r, f1
}
