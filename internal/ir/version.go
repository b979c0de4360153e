package ir

// Version constants for the IR schema and the lowering engine.
const (
	// IRVersion is the IR schema version written into manifests.
	IRVersion = "1"

	// EngineVersion is the fpgalower engine version.
	EngineVersion = "0.1.0"
)
