package ir

// Version constants stamped onto stored runs.
const (
	// IRVersion is the declaration graph schema version.
	IRVersion = "1"

	// EngineVersion is the propagation engine version.
	EngineVersion = "0.3.0"
)
