package oracle

import (
	"strings"

	"github.com/roach88/safeprop/internal/safety"
)

// Well-known annotations. Uses in source may be qualified or not; they are
// compared with safety.NameMatches.
const (
	immutable = "org.immutables.value.Value.Immutable"
	style     = "org.immutables.value.Value.Style"
	redacted  = "org.immutables.value.Value.Redacted"

	jacksonAnnotation = "com.fasterxml.jackson.annotation.JacksonAnnotation"
	jsonIgnore        = "com.fasterxml.jackson.annotation.JsonIgnore"
	jsonSubTypes      = "com.fasterxml.jackson.annotation.JsonSubTypes"
	jsonTypeInfo      = "com.fasterxml.jackson.annotation.JsonTypeInfo"
)

// generatedAccessorMarkers turn a concrete method into a value-object field.
var generatedAccessorMarkers = []string{
	"org.immutables.value.Value.Default",
	"org.immutables.value.Value.Derived",
	"org.immutables.value.Value.Lazy",
}

// jacksonBuiltins are library annotations meta-annotated with
// @JacksonAnnotation. Their declarations are never part of the program, so
// the meta-annotation is recorded here instead.
var jacksonBuiltins = []string{
	"com.fasterxml.jackson.annotation.JacksonInject",
	"com.fasterxml.jackson.annotation.JsonAlias",
	"com.fasterxml.jackson.annotation.JsonAnyGetter",
	"com.fasterxml.jackson.annotation.JsonAnySetter",
	"com.fasterxml.jackson.annotation.JsonAutoDetect",
	"com.fasterxml.jackson.annotation.JsonBackReference",
	"com.fasterxml.jackson.annotation.JsonClassDescription",
	"com.fasterxml.jackson.annotation.JsonCreator",
	"com.fasterxml.jackson.annotation.JsonEnumDefaultValue",
	"com.fasterxml.jackson.annotation.JsonFilter",
	"com.fasterxml.jackson.annotation.JsonFormat",
	"com.fasterxml.jackson.annotation.JsonGetter",
	"com.fasterxml.jackson.annotation.JsonIdentityInfo",
	"com.fasterxml.jackson.annotation.JsonIgnore",
	"com.fasterxml.jackson.annotation.JsonIgnoreProperties",
	"com.fasterxml.jackson.annotation.JsonIgnoreType",
	"com.fasterxml.jackson.annotation.JsonInclude",
	"com.fasterxml.jackson.annotation.JsonIncludeProperties",
	"com.fasterxml.jackson.annotation.JsonKey",
	"com.fasterxml.jackson.annotation.JsonManagedReference",
	"com.fasterxml.jackson.annotation.JsonMerge",
	"com.fasterxml.jackson.annotation.JsonProperty",
	"com.fasterxml.jackson.annotation.JsonPropertyDescription",
	"com.fasterxml.jackson.annotation.JsonPropertyOrder",
	"com.fasterxml.jackson.annotation.JsonRawValue",
	"com.fasterxml.jackson.annotation.JsonRootName",
	"com.fasterxml.jackson.annotation.JsonSetter",
	"com.fasterxml.jackson.annotation.JsonSubTypes",
	"com.fasterxml.jackson.annotation.JsonTypeId",
	"com.fasterxml.jackson.annotation.JsonTypeInfo",
	"com.fasterxml.jackson.annotation.JsonTypeName",
	"com.fasterxml.jackson.annotation.JsonUnwrapped",
	"com.fasterxml.jackson.annotation.JsonValue",
	"com.fasterxml.jackson.annotation.JsonView",
	"com.fasterxml.jackson.databind.annotation.JsonAppend",
	"com.fasterxml.jackson.databind.annotation.JsonDeserialize",
	"com.fasterxml.jackson.databind.annotation.JsonNaming",
	"com.fasterxml.jackson.databind.annotation.JsonPOJOBuilder",
	"com.fasterxml.jackson.databind.annotation.JsonSerialize",
	"com.fasterxml.jackson.databind.annotation.JsonTypeResolver",
	"com.fasterxml.jackson.databind.annotation.JsonValueInstantiator",
}

// DefaultKnownTypes classifies library types that never appear in a program
// but whose values are credentials.
var DefaultKnownTypes = map[string]safety.Level{
	"com.palantir.tokens.auth.BearerToken": safety.DoNotLog,
	"com.palantir.tokens.auth.AuthHeader":  safety.DoNotLog,
}

// DefaultTestPaths mark unit paths that hold test-only source. Only the
// build layout's test source root counts: a production package may well be
// named "test".
var DefaultTestPaths = []string{"src/test/"}

const jacksonPackage = "com.fasterxml.jackson."

// looksLikeJackson reports whether an unresolved annotation name is in a
// Jackson package or follows Jackson's Json* naming.
func looksLikeJackson(name string) bool {
	if strings.HasPrefix(name, jacksonPackage) {
		return true
	}
	return strings.HasPrefix(safety.SimpleName(name), "Json")
}

func matchesAny(name string, qualified []string) bool {
	for _, q := range qualified {
		if safety.NameMatches(name, q) {
			return true
		}
	}
	return false
}
