package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const bearerProgram = `package graph

unit: "Test.java": {
	package:     "com.example"
	source_file: "src/Test.java"
	types: [{
		name: "Test", kind: "interface", modifiers: ["public"], annotations: ["Value.Immutable"]
		methods: [{name: "token", returns: "BearerToken"}]
	}]
}
`

const bearerSource = `package com.example;

import com.palantir.tokens.auth.BearerToken;
import org.immutables.value.Value;

@Value.Immutable
public interface Test {
    BearerToken token();
}
`

const bearerRewritten = `package com.example;

import com.palantir.tokens.auth.BearerToken;
import org.immutables.value.Value;
import com.palantir.logsafe.DoNotLog;

@DoNotLog
@Value.Immutable
public interface Test {
    BearerToken token();
}
`

// writeProject creates a program directory from relative path -> content.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func bearerProject(t *testing.T) string {
	t.Helper()
	return writeProject(t, map[string]string{
		"program.cue":   bearerProgram,
		"src/Test.java": bearerSource,
	})
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// decode parses a JSON envelope whose data is a T.
func decode[T any](t *testing.T, out string) (CLIResponse, T) {
	t.Helper()
	var resp struct {
		CLIResponse
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.CLIResponse, resp.Data
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
