package testutil

// FixedStampGenerator returns the same build stamp every time.
//
// Unlike engine.FixedGenerator, which returns tokens in sequence and
// panics when they run out, this generator suits scenarios that write the
// same model several times and compare the output byte for byte.
//
// Thread-safety: FixedStampGenerator is stateless and safe for concurrent use.
type FixedStampGenerator struct {
	stamp string
}

// NewFixedStampGenerator creates a generator returning stamp.
// If stamp is empty, Generate returns "00000000".
func NewFixedStampGenerator(stamp string) *FixedStampGenerator {
	if stamp == "" {
		stamp = "00000000"
	}
	return &FixedStampGenerator{stamp: stamp}
}

// Generate returns the fixed stamp. Implements engine.IDGenerator.
func (g *FixedStampGenerator) Generate() string {
	return g.stamp
}
