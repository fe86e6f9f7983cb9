package testutil

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/require"

	"github.com/roach88/safeprop/internal/compiler"
	"github.com/roach88/safeprop/internal/ir"
)

// CompileProgram compiles a CUE declaration-graph document and fails the
// test on any error.
func CompileProgram(t testing.TB, doc string, opts ...compiler.Option) *ir.Program {
	t.Helper()
	v := cuecontext.New().CompileString(doc)
	require.NoError(t, v.Err())
	prog, err := compiler.New(opts...).CompileProgram(v)
	require.NoError(t, err)
	return prog
}

// Type returns the type with the given qualified name or fails the test.
func Type(t testing.TB, prog *ir.Program, name string) *ir.TypeDecl {
	t.Helper()
	d := ir.NewIndex(prog).Type(name)
	require.NotNil(t, d, "type %s not found", name)
	return d
}

// Method returns the method with the given name declared on type name.
func Method(t testing.TB, prog *ir.Program, typeName, method string) *ir.MethodDecl {
	t.Helper()
	for _, m := range Type(t, prog, typeName).Methods {
		if m.Name == method {
			return m
		}
	}
	require.FailNow(t, "method not found", "%s.%s", typeName, method)
	return nil
}
