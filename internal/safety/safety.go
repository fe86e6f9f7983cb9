// Package safety defines the confidentiality lattice used by the propagation
// engine.
//
// Levels form a total order:
//
//	UNKNOWN < SAFE < DO_NOT_LOG < UNSAFE
//
// Every merge in the engine goes through Join, which is the least upper bound
// under that order. The order is fixed; nothing in the engine may relax a
// level toward SAFE.
package safety

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is a confidentiality classification.
// The zero value is Unknown, which is also the identity element of Join.
type Level int

const (
	// Unknown means there is no evidence either way.
	Unknown Level = iota
	// Safe data may appear in logs and diagnostics.
	Safe
	// DoNotLog data must never be logged, even to internal sinks.
	DoNotLog
	// Unsafe data may be logged only as an unsafe argument.
	Unsafe
)

// Levels lists every level in increasing restrictiveness.
var Levels = []Level{Unknown, Safe, DoNotLog, Unsafe}

// String returns the canonical upper-case name of the level.
func (l Level) String() string {
	switch l {
	case Unknown:
		return "UNKNOWN"
	case Safe:
		return "SAFE"
	case DoNotLog:
		return "DO_NOT_LOG"
	case Unsafe:
		return "UNSAFE"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= Unknown && l <= Unsafe
}

// Parse converts a level name to a Level.
// Accepts the canonical names and their lower-case / hyphenated spellings.
func Parse(s string) (Level, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch norm {
	case "UNKNOWN", "":
		return Unknown, nil
	case "SAFE":
		return Safe, nil
	case "DO_NOT_LOG", "DONOTLOG":
		return DoNotLog, nil
	case "UNSAFE":
		return Unsafe, nil
	default:
		return Unknown, fmt.Errorf("invalid safety level %q", s)
	}
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML encodes the level by name.
func (l Level) MarshalYAML() (any, error) {
	return l.String(), nil
}

// UnmarshalYAML decodes a level name.
func (l *Level) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Join returns the more restrictive of a and b.
//
// Join is commutative, associative and idempotent, and Unknown is its
// identity: Join(Unknown, x) == x.
func Join(a, b Level) Level {
	if a >= b {
		return a
	}
	return b
}

// JoinAll folds Join over levels. An empty call returns Unknown.
func JoinAll(levels ...Level) Level {
	out := Unknown
	for _, l := range levels {
		out = Join(out, l)
	}
	return out
}

// JoinAssumingUnknownIsSame merges independent sources of evidence about the
// same value. Unknown carries no contrary evidence, so it defers to the other
// source. This is Join under another name; call sites use it where that intent
// matters.
func JoinAssumingUnknownIsSame(levels ...Level) Level {
	return JoinAll(levels...)
}

// Allows reports whether a declaration labelled existing may carry data
// classified computed without a rewrite.
func Allows(existing, computed Level) bool {
	return existing >= computed
}
