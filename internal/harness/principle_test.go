package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/safeprop/internal/safety"
	"github.com/roach88/safeprop/internal/store"
)

func TestCheckPrinciples(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name: "well formed",
			result: resultWith(
				store.Proposal{Target: "A", Level: safety.DoNotLog},
				store.Proposal{Target: "B", Existing: safety.DoNotLog, Level: safety.Unsafe},
			),
		},
		{
			name:   "safe proposal",
			result: resultWith(store.Proposal{Target: "A", Level: safety.Safe}),
			want:   []string{"principle restrictive_only: A proposed at SAFE"},
		},
		{
			name:   "lowered label",
			result: resultWith(store.Proposal{Target: "A", Existing: safety.Unsafe, Level: safety.DoNotLog}),
			want:   []string{"principle never_lowers: A: UNSAFE replaced by DO_NOT_LOG"},
		},
		{
			name: "duplicate target",
			result: resultWith(
				store.Proposal{Unit: "A.java", Target: "A", Level: safety.DoNotLog},
				store.Proposal{Unit: "A.java", Target: "A", Level: safety.Unsafe},
			),
			want: []string{"principle one_label_per_target: A proposed more than once"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPrinciples(tt.result))
		})
	}
}

func TestCheckPrinciples_StableOrder(t *testing.T) {
	r := NewResult()
	r.Proposals = []store.Proposal{{Seq: 1, Target: "A", Level: safety.DoNotLog}}
	assert.Equal(t, []string{"principle stable_order: proposal 0 has seq 1"}, CheckPrinciples(r))
}
