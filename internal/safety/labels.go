package safety

import (
	"fmt"
	"strings"
)

// Labels maps each annotatable level to the qualified name of the annotation
// type that marks it in source.
//
// Unknown has no label: it is represented by the absence of an annotation.
// The three labels are mutually exclusive markers on a declaration.
type Labels struct {
	Safe     string `yaml:"safe" json:"safe"`
	DoNotLog string `yaml:"do_not_log" json:"do_not_log"`
	Unsafe   string `yaml:"unsafe" json:"unsafe"`
}

// DefaultLabels are the logsafe annotation types.
var DefaultLabels = Labels{
	Safe:     "com.palantir.logsafe.Safe",
	DoNotLog: "com.palantir.logsafe.DoNotLog",
	Unsafe:   "com.palantir.logsafe.Unsafe",
}

// Name returns the qualified annotation name for level, or "" for Unknown.
func (t Labels) Name(level Level) string {
	switch level {
	case Safe:
		return t.Safe
	case DoNotLog:
		return t.DoNotLog
	case Unsafe:
		return t.Unsafe
	default:
		return ""
	}
}

// SimpleName returns the unqualified annotation name for level.
func (t Labels) SimpleName(level Level) string {
	return SimpleName(t.Name(level))
}

// Match returns the level marked by an annotation name.
// Both the qualified name and its simple (last segment) form match, since the
// front end may hand over either depending on how the source imported it.
func (t Labels) Match(annotation string) (Level, bool) {
	for _, level := range []Level{Safe, DoNotLog, Unsafe} {
		if NameMatches(annotation, t.Name(level)) {
			return level, true
		}
	}
	return Unknown, false
}

// Validate checks that all three labels are set and distinct.
func (t Labels) Validate() error {
	seen := map[string]Level{}
	for _, level := range []Level{Safe, DoNotLog, Unsafe} {
		name := t.Name(level)
		if name == "" {
			return fmt.Errorf("label for %s is empty", level)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("label %q used for both %s and %s", name, prev, level)
		}
		seen[name] = level
	}
	return nil
}

// WithDefaults fills empty labels from DefaultLabels.
func (t Labels) WithDefaults() Labels {
	if t.Safe == "" {
		t.Safe = DefaultLabels.Safe
	}
	if t.DoNotLog == "" {
		t.DoNotLog = DefaultLabels.DoNotLog
	}
	if t.Unsafe == "" {
		t.Unsafe = DefaultLabels.Unsafe
	}
	return t
}

// SimpleName strips the package / enclosing-type qualifier from a name.
func SimpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// NameMatches reports whether name refers to qualified.
//
// name matches when it equals qualified or is a dot-aligned suffix of it, so
// "Value.Redacted" and "Redacted" both match
// "org.immutables.value.Value.Redacted" but "Acted" does not.
func NameMatches(name, qualified string) bool {
	if name == "" || qualified == "" {
		return false
	}
	if name == qualified {
		return true
	}
	return strings.HasSuffix(qualified, "."+name)
}
