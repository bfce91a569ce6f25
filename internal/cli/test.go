package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/classver/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // script filter (glob pattern)
}

// ScriptResult holds the result of a single script execution.
type ScriptResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scripts []ScriptResult `json:"scripts"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Total   int            `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scripts-dir>",
		Short: "Run change scripts against scratch histories",
		Long: `Run every change script in a directory against a fresh in-memory history,
checking expectations, assertions and golden snapshots.

A script's golden snapshot lives at golden/<file>.golden next to it.
Scripts without one are checked by their assertions only.

Exit codes:
  0 - All scripts passed
  1 - One or more scripts failed
  2 - Command error (invalid paths, etc.)

Examples:
  classver test ./scripts
  classver test ./scripts --filter "colors*"
  classver test ./scripts --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scripts by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scriptsDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scriptsDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scripts directory not found: %s", scriptsDir))
	}

	files, err := findScriptFiles(scriptsDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scripts", err)
	}

	result := TestResult{Scripts: make([]ScriptResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScript(file, opts)
		result.Scripts = append(result.Scripts, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
			return err
		}
	} else {
		outputTestText(cmd, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scripts failed", result.Failed, result.Total))
	}
	return nil
}

// findScriptFiles finds all YAML script files directly in dir.
func findScriptFiles(dir string, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// runScript executes a single script and returns the result.
func runScript(file string, opts *TestOptions) ScriptResult {
	name := filepath.Base(file)

	script, err := harness.LoadScript(file)
	if err != nil {
		return ScriptResult{Name: name, Errors: []string{fmt.Sprintf("failed to load script: %v", err)}}
	}
	name = script.Name

	result, err := harness.Run(script)
	if err != nil {
		return ScriptResult{Name: name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	snapshot, err := harness.NewSnapshot(script.Name, result).Marshal()
	if err != nil {
		return ScriptResult{Name: name, Errors: []string{err.Error()}}
	}

	goldenPath := goldenFilePath(file)
	if opts.Update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			return ScriptResult{Name: name, Errors: []string{fmt.Sprintf("failed to update golden file: %v", err)}}
		}
	} else if want, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(want, snapshot) {
			result.AddError("snapshot does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		return ScriptResult{Name: name, Errors: []string{fmt.Sprintf("golden comparison failed: %v", err)}}
	}

	return ScriptResult{Name: name, Pass: result.Pass, Errors: result.Errors}
}

// goldenFilePath returns the path to the golden file for a script.
func goldenFilePath(scriptFile string) string {
	dir := filepath.Dir(scriptFile)
	base := filepath.Base(scriptFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func outputTestText(cmd *cobra.Command, result TestResult) {
	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No scripts found.")
		return
	}
	for _, s := range result.Scripts {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
