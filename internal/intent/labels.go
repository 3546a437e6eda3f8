// Package intent classifies a whole standup message into one of a fixed set
// of intents.
package intent

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is an intent id.
type Label int

const (
	LogUpdate Label = iota
	QueryUpdate
	UpdateEntry
	Unknown
)

var labelNames = [...]string{
	LogUpdate:   "log_update",
	QueryUpdate: "query_update",
	UpdateEntry: "update_entry",
	Unknown:     "unknown",
}

// Labels returns all intents in id order.
func Labels() []Label {
	return []Label{LogUpdate, QueryUpdate, UpdateEntry, Unknown}
}

// Names returns the intent names in id order.
func Names() []string {
	out := make([]string, len(labelNames))
	copy(out, labelNames[:])
	return out
}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel accepts an intent name or its numeric id.
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		if id < 0 || id >= len(labelNames) {
			return 0, fmt.Errorf("intent id %d out of range", id)
		}
		return Label(id), nil
	}
	for i, name := range labelNames {
		if strings.EqualFold(s, name) {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown intent %q", s)
}

func (l Label) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(labelNames) {
		return nil, fmt.Errorf("invalid intent %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
