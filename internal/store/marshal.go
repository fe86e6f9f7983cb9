package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// timeLayout stores timestamps as fixed-width UTC text so they sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalLabels stores the label table as canonical JSON so equal tables
// compare equal as text.
func marshalLabels(l safety.Labels) (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"safe":       l.Safe,
		"do_not_log": l.DoNotLog,
		"unsafe":     l.Unsafe,
	})
	if err != nil {
		return "", fmt.Errorf("marshal labels: %w", err)
	}
	return string(data), nil
}

func unmarshalLabels(data string) (safety.Labels, error) {
	var l safety.Labels
	if data == "" || data == "{}" {
		return l, nil
	}
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return safety.Labels{}, fmt.Errorf("unmarshal labels: %w", err)
	}
	return l, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
