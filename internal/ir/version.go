package ir

// Version constants for the circuit encoding and the tool.
const (
	// IRVersion is the graph hash encoding version.
	IRVersion = "1"

	// ToolVersion is the gatesched release.
	ToolVersion = "0.1.0"
)
