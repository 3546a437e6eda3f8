package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/scrumbot/internal/db"
	"github.com/raphaelgruber/scrumbot/internal/intent"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/models"
	"github.com/raphaelgruber/scrumbot/internal/ner"
)

// IntentClassifier predicts the intent of a message.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (intent.Prediction, error)
}

// FieldExtractor finds standup field spans in a message.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) ([]ner.Span, error)
}

// StandupStore persists standups.
type StandupStore interface {
	CreateStandup(ctx context.Context, in db.StandupInput) (*models.Standup, error)
}

// StandupInput is one message from an employee.
type StandupInput struct {
	Text       string
	EmployeeID string
	// Confirm stores a log_update message; without it Process only previews.
	Confirm bool
}

// StandupResult is what Process understood from a message.
type StandupResult struct {
	Intent   string            `json:"intent"`
	Score    float64           `json:"score"`
	Entities map[string]string `json:"entities"`
	Spans    []ner.Span        `json:"spans"`
	Reply    string            `json:"reply"`
	Standup  *models.Standup   `json:"standup,omitempty"`
}

// StandupService runs the classify, extract and store pipeline.
type StandupService struct {
	classifier IntentClassifier
	extractor  FieldExtractor
	store      StandupStore
	now        func() time.Time
}

// NewStandupService creates a standup service. store may be nil when nothing
// is ever confirmed.
func NewStandupService(c IntentClassifier, e FieldExtractor, store StandupStore) *StandupService {
	return &StandupService{classifier: c, extractor: e, store: store, now: time.Now}
}

var replies = map[intent.Label]string{
	intent.LogUpdate:   "Standup update recognized. Confirm to save it.",
	intent.QueryUpdate: "Looks like you want to see past updates. Use the standup list to view logs.",
	intent.UpdateEntry: "Looks like you want to change an existing standup. Edit it from the standup list.",
	intent.Unknown:     "Couldn't determine intent. Try rephrasing your message.",
}

// Process classifies text, extracts its fields and, for a confirmed
// log_update, stores a standup.
func (s *StandupService) Process(ctx context.Context, in StandupInput) (*StandupResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: standup text is required", ErrInvalidInput)
	}

	pred, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	spans, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	res := &StandupResult{
		Intent:   pred.Label.String(),
		Score:    pred.Score,
		Entities: ner.FieldNames(spans),
		Spans:    spans,
		Reply:    replies[pred.Label],
	}

	if pred.Label != intent.LogUpdate || !in.Confirm {
		return res, nil
	}
	if in.EmployeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required to save a standup", ErrInvalidInput)
	}
	if s.store == nil {
		return nil, fmt.Errorf("save standup: no store configured")
	}

	fields := ner.Fields(spans)
	date := today(s.now)
	var dateText *string
	if dt, ok := fields[labels.FieldDate]; ok {
		dateText = &dt
		if d, ok := ParseStandupDate(dt, date); ok {
			date = d
		}
	}

	standup, err := s.store.CreateStandup(ctx, db.StandupInput{
		EmployeeID: in.EmployeeID,
		Date:       date,
		Text:       text,
		Intent:     res.Intent,
		Yesterday:  optional(fields, labels.FieldYesterday),
		Today:      optional(fields, labels.FieldToday),
		Blockers:   optional(fields, labels.FieldBlockers),
		Report:     optional(fields, labels.FieldReport),
		DateText:   dateText,
	})
	if err != nil {
		return nil, err
	}
	res.Standup = standup
	res.Reply = "Standup saved."
	slog.Info("standup saved", "employee", in.EmployeeID, "date", date.Format(time.DateOnly))
	return res, nil
}

func optional(fields map[labels.Field]string, f labels.Field) *string {
	if v, ok := fields[f]; ok {
		return &v
	}
	return nil
}

var dateLayouts = []string{
	time.DateOnly,
	"01/02/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
}

var yearlessLayouts = []string{
	"Jan 2",
	"January 2",
	"2 Jan",
	"2 January",
}

// ParseStandupDate reads a date mentioned in a standup relative to ref.
// Dates without a year take the year of ref.
func ParseStandupDate(s string, ref time.Time) (time.Time, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	switch strings.ToLower(s) {
	case "today":
		return ref, true
	case "yesterday":
		return ref.AddDate(0, 0, -1), true
	case "tomorrow":
		return ref.AddDate(0, 0, 1), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
