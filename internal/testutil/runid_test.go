package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunIDGenerator_Sequence(t *testing.T) {
	gen := NewFixedRunIDGenerator("")
	assert.Equal(t, "run-0001", gen.Generate())
	assert.Equal(t, "run-0002", gen.Generate())
}

func TestFixedRunIDGenerator_Prefix(t *testing.T) {
	gen := NewFixedRunIDGenerator("scenario")
	assert.Equal(t, "scenario-0001", gen.Generate())
}
