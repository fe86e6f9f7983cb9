package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/safety"
	"github.com/roach88/safeprop/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// proposals runs the engine over a CUE program and returns the proposed
// level for each annotated target.
func proposals(t *testing.T, doc string) map[string]safety.Level {
	t.Helper()
	prog := testutil.CompileProgram(t, doc)
	e := New(oracle.New(prog), WithLogger(discardLogger()))
	fs, err := e.AnalyzeProgram(context.Background(), prog)
	require.NoError(t, err)
	out := map[string]safety.Level{}
	for _, f := range fs {
		out[f.Target] = f.Level
	}
	return out
}

type propagationCase struct {
	name string
	doc  string
	want map[string]safety.Level
}

func runCases(t *testing.T, cases []propagationCase) {
	t.Helper()
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if want == nil {
				want = map[string]safety.Level{}
			}
			assert.Equal(t, want, proposals(t, tt.doc))
		})
	}
}

func TestValueObjects(t *testing.T) {
	runCases(t, []propagationCase{
		{
			name: "accessor returning do-not-log type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "BearerToken"}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "extends do-not-log interface",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "DnlIface", kind: "interface", annotations: ["DoNotLog"], methods: [{name: "value", returns: "Object"}]},
					{name: "ImmutablesIface", kind: "interface", annotations: ["Value.Immutable"], extends: ["DnlIface"]},
				]
			}]`,
			want: map[string]safety.Level{"Test.ImmutablesIface": safety.DoNotLog},
		},
		{
			name: "inherited accessor returning do-not-log type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "DnlIface", kind: "interface", methods: [{name: "value", returns: "BearerToken"}]},
					{name: "ImmutablesIface", kind: "interface", annotations: ["Value.Immutable"], extends: ["DnlIface"]},
				]
			}]`,
			want: map[string]safety.Level{"Test.ImmutablesIface": safety.DoNotLog},
		},
		{
			name: "mixed accessor safety joins to unsafe",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [
					{name: "one", returns: "String", annotations: ["Safe"]},
					{name: "two", returns: "String", annotations: ["Unsafe"]},
					{name: "three", returns: "String"},
				]
			}]`,
			want: map[string]safety.Level{"Test": safety.Unsafe},
		},
		{
			name: "annotated accessor",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog"]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "existing unsafe covers do-not-log",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Unsafe", "Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog"]}]
			}]`,
		},
		{
			name: "existing do-not-log raised to unsafe",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable", "DoNotLog"]
				methods: [{name: "token", returns: "String", annotations: ["Unsafe"]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.Unsafe},
		},
		{
			name: "safe accessor is not propagated",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["Safe"]}]
			}]`,
		},
		{
			name: "static methods are not accessors",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["static"], annotations: ["DoNotLog"], body: [{"return": {literal: ""}}]}]
			}]`,
		},
		{
			name: "private methods are not accessors",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["private"], annotations: ["DoNotLog"], body: [{"return": {literal: ""}}]}]
			}]`,
		},
		{
			name: "default method under defaultAsDefault",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable", {name: "Value.Style", args: {defaultAsDefault: true}}]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog"], body: [{"return": {literal: ""}}]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "default method under custom style",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface"
				types: [
					{name: "Sub", kind: "interface", annotations: ["Value.Immutable", "CustomStyle"],
						methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog"], body: [{"return": {literal: ""}}]}]},
					{name: "CustomStyle", kind: "annotation", modifiers: ["public"], annotations: [{name: "Value.Style", args: {defaultAsDefault: true}}]},
				]
			}]`,
			want: map[string]safety.Level{"Test.Sub": safety.DoNotLog},
		},
		{
			name: "Value.Default method",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog", "Value.Default"], body: [{"return": {literal: ""}}]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "Value.Derived method",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog", "Value.Derived"], body: [{"return": {literal: ""}}]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "Value.Lazy method",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog", "Value.Lazy"], body: [{"return": {literal: ""}}]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "helper default method",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog"], body: [{"return": {literal: ""}}]}]
			}]`,
		},
		{
			name: "helper concrete method on abstract class",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["abstract"], annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog"], body: [{"return": {literal: ""}}]}]
			}]`,
		},
		{
			name: "jackson annotated helper on interface",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog", "JsonProperty"], body: [{"return": {literal: ""}}]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "jackson annotated helper on abstract class",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["abstract"], annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "JsonProperty"], body: [{"return": {literal: ""}}]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "JsonIgnore helper",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog", "JsonIgnore"], body: [{"return": {literal: ""}}]}]
			}]`,
		},
		{
			name: "JsonIgnore abstract accessor still appears in toString",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "JsonIgnore"]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "void accessor",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "void", annotations: ["DoNotLog"]}]
			}]`,
		},
		{
			name: "accessor with parameters",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog"], params: [{name: "i", type: "int"}]}]
			}]`,
		},
		{
			name: "plain interface is not scanned",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface"
				methods: [
					{name: "getToken", returns: "String", annotations: ["DoNotLog"]},
					{name: "token", returns: "String", annotations: ["DoNotLog"], params: [{name: "i", type: "int"}]},
				]
			}]`,
		},
		{
			name: "value object with parameterized helper",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [
					{name: "getToken", returns: "String", annotations: ["DoNotLog"]},
					{name: "token", returns: "String", modifiers: ["default"], annotations: ["DoNotLog"], params: [{name: "i", type: "int"}], body: [{"return": {literal: ""}}]},
				]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "unsafe type through ancestor accessor",
			doc: `unit: "Test.java": types: [
				{name: "Secret", kind: "class", annotations: ["Unsafe"]},
				{name: "Parent", kind: "interface", methods: [{name: "secret", returns: "Secret"}]},
				{name: "Test", kind: "interface", annotations: ["Value.Immutable"], extends: ["Parent"],
					methods: [{name: "name", returns: "String"}]},
			]`,
			want: map[string]safety.Level{"Test": safety.Unsafe},
		},
		{
			name: "diamond hierarchy",
			doc: `unit: "Test.java": types: [
				{name: "Root", kind: "interface", methods: [{name: "token", returns: "BearerToken"}]},
				{name: "Left", kind: "interface", extends: ["Root"]},
				{name: "Right", kind: "interface", extends: ["Root"]},
				{name: "Test", kind: "interface", annotations: ["Value.Immutable"], extends: ["Left", "Right"]},
			]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "test sources are never annotated",
			doc: `unit: "src/test/java/Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "BearerToken"}]
			}]`,
		},
		{
			name: "production package named test is analyzed",
			doc: `unit: "src/main/java/com/acme/test/Creds.java": types: [{
				name: "Creds", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "BearerToken"}]
			}]`,
			want: map[string]safety.Level{"Creds": safety.DoNotLog},
		},
		{
			name: "units marked as test",
			doc: `unit: "Test.java": {
				test: true
				types: [{
					name: "Test", kind: "interface", annotations: ["Value.Immutable"]
					methods: [{name: "token", returns: "BearerToken"}]
				}]
			}`,
		},
	}

	t.Run("ladder of diamonds", func(t *testing.T) {
		// Every rung doubles the paths to T0, so each ancestor must be
		// scanned once for this to finish.
		assert.Equal(t, map[string]safety.Level{"V": safety.DoNotLog}, proposals(t, diamondLadder(30)))
	})
}

// diamondLadder builds T_i extends A_i, B_i, both of which extend T_{i-1},
// under a value object V extending T_rungs. Only T0 declares an accessor.
func diamondLadder(rungs int) string {
	var b strings.Builder
	b.WriteString(`unit: "Test.java": types: [
		{name: "T0", kind: "interface", methods: [{name: "token", returns: "BearerToken"}]},
`)
	for i := 1; i <= rungs; i++ {
		fmt.Fprintf(&b, "\t\t{name: \"A%d\", kind: \"interface\", extends: [\"T%d\"]},\n", i, i-1)
		fmt.Fprintf(&b, "\t\t{name: \"B%d\", kind: \"interface\", extends: [\"T%d\"]},\n", i, i-1)
		fmt.Fprintf(&b, "\t\t{name: \"T%d\", kind: \"interface\", extends: [\"A%d\", \"B%d\"]},\n", i, i, i)
	}
	fmt.Fprintf(&b, "\t\t{name: \"V\", kind: \"interface\", annotations: [\"Value.Immutable\"], extends: [\"T%d\"]},\n]", rungs)
	return b.String()
}

func TestRedaction(t *testing.T) {
	runCases(t, []propagationCase{
		{
			name: "redacted accessor is do-not-log",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["Value.Redacted"]}]
			}]`,
			want: map[string]safety.Level{"Test#token()": safety.DoNotLog},
		},
		{
			name: "redacted accessor may be unsafe",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["Unsafe", "JsonValue", "Value.Redacted"]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.Unsafe},
		},
		{
			name: "redacted accessor with unlisted jackson annotation",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: [
					"Unsafe", "com.fasterxml.jackson.dataformat.xml.annotation.JacksonXmlProperty", "Value.Redacted",
				]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.Unsafe},
		},
		{
			name: "redacted accessor on serialized type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["JsonSerialize", "Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["Value.Redacted"]}]
			}]`,
			want: map[string]safety.Level{
				"Test":         safety.DoNotLog,
				"Test#token()": safety.DoNotLog,
			},
		},
		{
			name: "redacted annotated accessor is excluded",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "Value.Redacted"]}]
			}]`,
		},
		{
			name: "redacted unsafe accessor is excluded when hidden",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["Unsafe", "Value.Redacted"]}]
			}]`,
		},
		{
			name: "redacted JsonIgnore accessor",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "JsonIgnore", "Value.Redacted"]}]
			}]`,
		},
		{
			name: "redacted JsonValue accessor",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "JsonValue", "Value.Redacted"]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "redacted accessor on JsonSerialize type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "interface", annotations: ["Value.Immutable", "JsonSerialize"]
				methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "Value.Redacted"]}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "redacted safe method raised to do-not-log",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{name: "token", returns: "String", annotations: ["Safe", "Value.Redacted"], body: [{"return": {literal: "x"}}]}]
			}]`,
			want: map[string]safety.Level{"Test#token()": safety.DoNotLog},
		},
		{
			name: "redacted inherited accessor follows the scanned type",
			doc: `unit: "Test.java": types: [
				{name: "Parent", kind: "interface", methods: [{name: "token", returns: "String", annotations: ["DoNotLog", "Value.Redacted"]}]},
				{name: "Test", kind: "interface", annotations: ["Value.Immutable", "JsonDeserialize"], extends: ["Parent"]},
			]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
	})
}

func TestRecords(t *testing.T) {
	runCases(t, []propagationCase{
		{
			name: "component of do-not-log type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "record", components: [{name: "token", type: "BearerToken"}]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "wrapped components",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "UnsafeType", kind: "class", annotations: ["Unsafe"]},
					{name: "Rec1", kind: "record", components: [{name: "val", type: "UnsafeType"}]},
					{name: "Rec2", kind: "record", components: [{name: "val", type: {name: "List", args: ["UnsafeType"]}}]},
					{name: "Rec3", kind: "record", components: [{name: "val", type: {name: "Optional", args: ["UnsafeType"]}}]},
				]
			}]`,
			want: map[string]safety.Level{
				"Test.Rec1": safety.Unsafe,
				"Test.Rec2": safety.Unsafe,
				"Test.Rec3": safety.Unsafe,
			},
		},
		{
			name: "annotated component",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "record", components: [
					{name: "id", type: "String", annotations: ["Safe"]},
					{name: "secret", type: "String", annotations: ["DoNotLog"]},
				]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "safe components",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "record", components: [{name: "id", type: "String", annotations: ["Safe"]}]
			}]`,
		},
		{
			name: "record implementing do-not-log interface",
			doc: `unit: "Test.java": types: [
				{name: "Credential", kind: "interface", annotations: ["DoNotLog"]},
				{name: "Test", kind: "record", extends: ["Credential"], components: [{name: "id", type: "String"}]},
			]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
	})
}

func TestArbitraryTypes(t *testing.T) {
	runCases(t, []propagationCase{
		{
			name: "toString declares do-not-log",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["abstract"]
				methods: [
					{name: "token", returns: "String", modifiers: ["abstract"], annotations: ["DoNotLog"]},
					{name: "toString", returns: "String", modifiers: ["public"], annotations: ["Override", "DoNotLog"],
						body: [{"return": {concat: [{literal: "Test"}, {call: "token"}]}}]},
				]
			}]`,
			want: map[string]safety.Level{"Test": safety.DoNotLog},
		},
		{
			name: "existing unsafe covers toString",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["abstract"], annotations: ["Unsafe"]
				methods: [
					{name: "token", returns: "String", modifiers: ["abstract"], annotations: ["DoNotLog"]},
					{name: "toString", returns: "String", modifiers: ["public"], annotations: ["Override", "DoNotLog"],
						body: [{"return": {concat: [{literal: "Test"}, {call: "token"}]}}]},
				]
			}]`,
		},
		{
			name: "toString that only throws",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["abstract"]
				methods: [{name: "toString", returns: "String", modifiers: ["public"], annotations: ["Override"],
					body: [{throw: {"new": "RuntimeException"}}]}]
			}]`,
		},
		{
			name: "inherited toString",
			doc: `unit: "Test.java": types: [
				{name: "Base", kind: "class", annotations: ["DoNotLog"], methods: [
					{name: "toString", returns: "String", annotations: ["Unsafe"], body: [{"return": {literal: "base"}}]},
				]},
				{name: "Child", kind: "class", extends: ["Base"]},
			]`,
			want: map[string]safety.Level{
				"Base":  safety.Unsafe,
				"Child": safety.Unsafe,
			},
		},
		{
			name: "ancestor label",
			doc: `unit: "Test.java": types: [
				{name: "Parent", kind: "class", annotations: ["DoNotLog"]},
				{name: "Middle", kind: "class", extends: ["Parent"]},
				{name: "Child", kind: "class", extends: ["Middle"]},
			]`,
			want: map[string]safety.Level{
				"Middle": safety.DoNotLog,
				"Child":  safety.DoNotLog,
			},
		},
		{
			name: "library supertype with known safety",
			doc: `unit: "Test.java": types: [
				{name: "Token", kind: "class", extends: ["com.palantir.tokens.auth.BearerToken"]},
			]`,
			want: map[string]safety.Level{"Token": safety.DoNotLog},
		},
		{
			name: "message accessors on exceptions are ignored",
			doc: `unit: "Test.java": types: [{
				name: "MyException", kind: "class", extends: ["RuntimeException"]
				methods: [{name: "getMessage", returns: "String", modifiers: ["public"], annotations: ["Override"],
					body: [{"return": {unknown: true, type: "String"}}]}]
			}]`,
		},
		{
			name: "sealed permits",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "Base", kind: "interface", modifiers: ["sealed"], permits: ["Dnl"]},
					{name: "Dnl", kind: "class", modifiers: ["final"], annotations: ["DoNotLog"], extends: ["Base"]},
				]
			}]`,
			want: map[string]safety.Level{"Test.Base": safety.DoNotLog},
		},
		{
			name: "jackson defaultImpl",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "Base", kind: "interface", annotations: [
						{name: "JsonTypeInfo", args: {use: "JsonTypeInfo.Id.NAME", property: "type", defaultImpl: "Dnl.class"}},
						{name: "JsonSubTypes", args: {value: [{value: "Unmarked.class", name: "u"}]}},
					]},
					{name: "Dnl", kind: "class", annotations: ["DoNotLog"], extends: ["Base"]},
					{name: "Unmarked", kind: "class", extends: ["Base"]},
				]
			}]`,
			want: map[string]safety.Level{"Test.Base": safety.DoNotLog},
		},
		{
			name: "jackson subtypes array",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "Base", kind: "interface", annotations: [
						{name: "JsonTypeInfo", args: {use: "JsonTypeInfo.Id.NAME", property: "type"}},
						{name: "JsonSubTypes", args: {value: [{value: "Dnl.class", name: "dnl"}]}},
					]},
					{name: "Dnl", kind: "class", annotations: ["DoNotLog"], extends: ["Base"]},
				]
			}]`,
			want: map[string]safety.Level{"Test.Base": safety.DoNotLog},
		},
		{
			name: "jackson subtypes implicit array",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [
					{name: "Base", kind: "interface", annotations: [
						{name: "JsonTypeInfo", args: {use: "JsonTypeInfo.Id.NAME", property: "type"}},
						{name: "JsonSubTypes", args: {value: {value: "Dnl.class", name: "dnl"}}},
					]},
					{name: "Dnl", kind: "class", annotations: ["DoNotLog"], extends: ["Base"]},
				]
			}]`,
			want: map[string]safety.Level{"Test.Base": safety.DoNotLog},
		},
	})
}

func TestMethods(t *testing.T) {
	runCases(t, []propagationCase{
		{
			name: "returns a do-not-log value",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["public", "final"]
				methods: [{name: "get", returns: "Object", modifiers: ["public"],
					body: [{"return": {call: "BearerToken#valueOf", type: "BearerToken", args: [{literal: "abcdefghijklmnopq"}]}}]}]
			}]`,
			want: map[string]safety.Level{"Test#get()": safety.DoNotLog},
		},
		{
			name: "never declares safe",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{name: "get", returns: "Object", params: [{name: "safe", type: "String", annotations: ["Safe"]}],
					body: [{"return": {param: "safe"}}]}]
			}]`,
		},
		{
			name: "merges every return",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{
					name: "get", returns: "Object"
					params: [
						{name: "in", type: "int"},
						{name: "safe", type: "String", annotations: ["Safe"]},
						{name: "unsafe", type: "String", annotations: ["Unsafe"]},
						{name: "unknown", type: "String"},
					]
					body: [{block: [
						{"return": {param: "safe"}},
						{"return": {param: "unsafe"}},
						{"return": {param: "unknown"}},
					]}]
				}]
			}]`,
			want: map[string]safety.Level{"Test#get(int,String,String,String)": safety.Unsafe},
		},
		{
			name: "ignores returns of nested scopes",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{
					name: "get", returns: "Object"
					params: [{name: "unsafe", type: "String", annotations: ["Unsafe"]}]
					body: [
						{anonymous: {
							extends: [{name: "Callable", args: ["Object"]}]
							methods: [{name: "call", returns: "Object", annotations: ["Override"],
								body: [{"return": {call: "BearerToken#valueOf", type: "BearerToken"}}]}]
						}},
						{lambda: [{"return": {call: "BearerToken#valueOf", type: "BearerToken"}}]},
						{"return": {param: "unsafe"}},
					]
				}]
			}]`,
			want: map[string]safety.Level{"Test#get(String)": safety.Unsafe},
		},
		{
			name: "only nested returns",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{
					name: "get", returns: "Object"
					params: [{name: "unsafe", type: "String", annotations: ["Unsafe"]}]
					body: [
						{lambda: [{"return": {param: "unsafe"}}]},
						{throw: {"new": "IllegalStateException"}},
					]
				}]
			}]`,
		},
		{
			name: "local class returns",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{
					name: "get", returns: "Object"
					body: [
						{class: {name: "Local", kind: "class", methods: [
							{name: "token", returns: "Object", body: [{"return": {call: "BearerToken#valueOf", type: "BearerToken"}}]},
						]}},
						{"return": {"new": "Object"}},
					]
				}]
			}]`,
			want: map[string]safety.Level{"Test.Local#token()": safety.DoNotLog},
		},
		{
			name: "anonymous class methods",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["public", "final"]
				methods: [{
					name: "supplier", returns: "Supplier", modifiers: ["static"]
					body: [
						{anonymous: {
							extends: [{name: "Supplier", args: ["Object"]}]
							methods: [{name: "get", returns: "Object", annotations: ["Override"],
								body: [{"return": {call: "BearerToken#valueOf", type: "BearerToken"}}]}]
						}},
						{"return": {local: "s", type: "Supplier"}},
					]
				}]
			}]`,
		},
		{
			name: "annotated return type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [{name: "UnsafeType", kind: "class", modifiers: ["private", "static"], annotations: ["Unsafe"]}]
				methods: [{name: "getType", returns: "UnsafeType", body: [{"return": {"new": "UnsafeType"}}]}]
			}]`,
		},
		{
			name: "annotated array return type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [{name: "UnsafeType", kind: "class", modifiers: ["private", "static"], annotations: ["Unsafe"]}]
				methods: [{name: "getType", returns: "UnsafeType[]", body: [{"return": {"new": "UnsafeType[]"}}]}]
			}]`,
		},
		{
			name: "annotated collection return type",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				types: [{name: "UnsafeType", kind: "class", modifiers: ["private", "static"], annotations: ["Unsafe"]}]
				methods: [{name: "getType", returns: {name: "List", args: ["UnsafeType"]},
					body: [{"return": {"new": {name: "ArrayList", args: ["UnsafeType"]}}}]}]
			}]`,
		},
		{
			name: "bare returns only",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{name: "get", returns: "Object", body: [{"return": null}]}]
			}]`,
		},
		{
			name: "synthetic methods",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{name: "get", returns: "Object", synthetic: true,
					body: [{"return": {call: "BearerToken#valueOf", type: "BearerToken"}}]}]
			}]`,
		},
		{
			name: "abstract methods",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class", modifiers: ["abstract"]
				methods: [{name: "get", returns: "Object", modifiers: ["abstract"]}]
			}]`,
		},
		{
			name: "calls through declared safety",
			doc: `unit: "Test.java": types: [{
				name: "Test", kind: "class"
				methods: [
					{name: "secret", returns: "String", annotations: ["Unsafe"], body: [{"return": {unknown: true}}]},
					{name: "get", returns: "String", body: [{"return": {call: "secret"}}]},
				]
			}]`,
			want: map[string]safety.Level{"Test#get()": safety.Unsafe},
		},
		{
			name: "test sources",
			doc: `unit: "src/test/java/Test.java": types: [{
				name: "Test", kind: "class"
				methods: [{name: "get", returns: "Object",
					body: [{"return": {call: "BearerToken#valueOf", type: "BearerToken"}}]}]
			}]`,
		},
	})
}

func TestAnalyzeProgram_OrderIndependentOfWorkers(t *testing.T) {
	prog := testutil.CompileProgram(t, `
		unit: "b/B.java": types: [{name: "B", kind: "record", components: [{name: "t", type: "BearerToken"}]}]
		unit: "a/A.java": types: [
			{name: "A1", kind: "record", components: [{name: "t", type: "BearerToken"}]},
			{name: "A2", kind: "class", methods: [{name: "get", returns: "Object", body: [{"return": {"new": "AuthHeader"}}]}]},
		]
		unit: "c/C.java": types: [{name: "C", kind: "class"}]
		unit: "d/D.java": types: [{name: "D", kind: "record", components: [{name: "t", type: "BearerToken"}]}]
	`)
	o := oracle.New(prog)

	serial, err := New(o, WithLogger(discardLogger())).AnalyzeProgram(context.Background(), prog)
	require.NoError(t, err)
	parallel, err := New(o, WithLogger(discardLogger()), WithWorkers(4)).AnalyzeProgram(context.Background(), prog)
	require.NoError(t, err)

	var targets []string
	for _, f := range serial {
		targets = append(targets, f.Target)
	}
	assert.Equal(t, []string{"A1", "A2#get()", "B", "D"}, targets)
	assert.Equal(t, serial, parallel)

	assert.Equal(t, "a/A.java", serial[0].Unit)
	assert.Equal(t, TargetType, serial[0].Kind)
	assert.Equal(t, TargetMethod, serial[1].Kind)
	assert.NotNil(t, serial[1].Method)
	assert.Same(t, serial[1].Method, serial[1].Symbol())
}

func TestAnalyzeProgram_Canceled(t *testing.T) {
	prog := testutil.CompileProgram(t, `unit: "A.java": types: [{name: "A", kind: "class"}]`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(oracle.New(prog), WithLogger(discardLogger())).AnalyzeProgram(ctx, prog)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithWorkers_Floor(t *testing.T) {
	e := New(nil, WithWorkers(0))
	assert.Equal(t, 1, e.workers)
	e = New(nil, WithWorkers(8), WithLogger(nil))
	assert.Equal(t, 8, e.workers)
	assert.NotNil(t, e.logger)
}
