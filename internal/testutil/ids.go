package testutil

// FixedIDGenerator returns the same transaction id every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// log lines and harness snapshots that carry the transaction id stay
// byte-identical between runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed id generator.
// If id is empty, Generate returns "test-tx-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-tx-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
