package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"gopkg.in/yaml.v3"
)

// Snapshot captures a script run for golden comparison. History entries
// read "<number> <reason>".
type Snapshot struct {
	Script  string              `yaml:"script"`
	Trace   []TraceEvent        `yaml:"trace"`
	History map[string][]string `yaml:"history,omitempty"`
}

// NewSnapshot builds the snapshot of result under name.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{Script: name, Trace: result.Trace}
	if len(result.History) > 0 {
		s.History = make(map[string][]string, len(result.History))
		for root, revs := range result.History {
			lines := make([]string, len(revs))
			for i, r := range revs {
				lines[i] = fmt.Sprintf("%d %s", r.Number, reasonName(r.Reason))
			}
			s.History[root] = lines
		}
	}
	return s
}

// Marshal renders the snapshot as YAML with two-space indentation.
// Map keys are sorted, so the output is deterministic.
func (s Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a script and compares its snapshot against
// testdata/golden/{script.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, script *Script) (*Result, error) {
	t.Helper()

	result, err := Run(script)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, script.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the snapshot of an existing result against a
// golden file without re-running the script.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
