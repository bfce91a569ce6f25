package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/model"
)

// cliEnv runs commands against one scratch database.
type cliEnv struct {
	t   *testing.T
	dir string
	db  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("CLASSVER_PROPERTIES", "")
	t.Setenv("CLASSVER_COMMIT_MODE", "node")
	dir := t.TempDir()
	return &cliEnv{t: t, dir: dir, db: filepath.Join(dir, "classver.db")}
}

// run executes the root command with args and the env's database.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append(args, "--db", e.db))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, stderr, err := e.run(args...)
	require.NoError(e.t, err, "stderr: %s", stderr)
	return out
}

func (e *cliEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *cliEnv) loadColors() {
	e.t.Helper()
	e.mustRun("load", filepath.Join("testdata", "colors.cue"))
}

const deleteRedScript = `name: delete_red
transactions:
  - steps:
      - op: delete
        root: colors
        id: red
`

const deleteColorsScript = `name: delete_colors
transactions:
  - steps:
      - op: delete
        root: colors
`

func TestLoad_RecordsOneRevisionPerNode(t *testing.T) {
	e := newCLIEnv(t)

	out := e.mustRun("load", filepath.Join("testdata", "colors.cue"))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	for i, line := range lines {
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 5)
		assert.Equal(t, "class:colors", fields[0])
		assert.Equal(t, []string{"1", "2", "3", "4"}[i], fields[1])
		assert.Equal(t, "created", fields[2])
		assert.Equal(t, "classver", fields[4])
	}
}

func TestLoad_ObjectModeRecordsOneRevision(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv("CLASSVER_COMMIT_MODE", "object")

	out := e.mustRun("load", filepath.Join("testdata", "colors.cue"))
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestLoad_RefusesExistingClassification(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	_, _, err := e.run("load", filepath.Join("testdata", "colors.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "classification colors already exists")
}

func TestLoad_InvalidDefinition(t *testing.T) {
	e := newCLIEnv(t)
	path := e.writeFile("broken.cue", "classification: colors: {\n")

	_, _, err := e.run("load", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory_JSON(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	out := e.mustRun("history", "colors", "--format", "json")

	var resp struct {
		Status string         `json:"status"`
		Data   []RevisionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 4)
	assert.Equal(t, int64(4), resp.Data[3].Number)
	assert.Equal(t, "created", resp.Data[3].Reason)
}

func TestHistory_UnknownClassification(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun("init", "placeholder")

	_, _, err := e.run("history", "nothing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, model.IsNotFound(err))
}

func TestList_Objects(t *testing.T) {
	e := newCLIEnv(t)
	assert.Equal(t, "No objects.\n", e.mustRun("list"))

	e.loadColors()
	e.mustRun("init", "animals")
	assert.Equal(t, "class:animals\nclass:colors\n", e.mustRun("list"))
}

func TestShow_RootAndCategory(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	root := e.mustRun("show", "colors")
	assert.Contains(t, root, `ID="red"`)
	assert.Contains(t, root, `ID="navy"`)

	navy := e.mustRun("show", "colors", "blue", "navy")
	assert.Contains(t, navy, `ID="navy"`)
	assert.NotContains(t, navy, `ID="red"`)
}

func TestShow_DeletedCategoryReadableAtEarlierRevision(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()
	script := e.writeFile("delete_red.yaml", deleteRedScript)
	e.mustRun("apply", script)

	_, _, err := e.run("show", "colors", "red")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, model.IsDeleted(err))

	out := e.mustRun("show", "colors", "red", "--rev", "4")
	assert.Contains(t, out, `ID="red"`)

	root := e.mustRun("show", "colors")
	assert.NotContains(t, root, `ID="red"`)
}

func TestShow_JSON(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	out := e.mustRun("show", "colors", "--format", "json")

	var resp struct {
		Data DocumentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "class:colors", resp.Data.Object)
	assert.Equal(t, int64(4), resp.Data.Revision)
	assert.Contains(t, resp.Data.Content, `ID="blue"`)
}

func TestApply_ScriptAgainstStoredTree(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	out := e.mustRun("apply", filepath.Join("testdata", "scripts", "rename_red.yaml"))
	assert.Contains(t, out, "tx 1 update colors:red ok")
	assert.Contains(t, out, "tx 1 commit ok [5 6]")

	history := e.mustRun("history", "colors")
	assert.Contains(t, history, "class:colors\t5\tupdated")
	assert.Contains(t, history, "class:colors\t6\tupdated")
}

func TestApply_FailingScript(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()
	script := e.writeFile("bad.yaml", `name: bad
transactions:
  - steps:
      - op: update
        root: colors
        id: purple
        labels: [{lang: en, text: Purple}]
`)

	out, _, err := e.run("apply", script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "script bad failed")
	assert.Contains(t, out, "unexpected error")

	history := e.mustRun("history", "colors")
	assert.Len(t, strings.Split(strings.TrimSpace(history), "\n"), 4)
}

func TestApply_MissingScript(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := e.run("apply", filepath.Join(e.dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPurge_DeniedWithoutProperties(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	out, _, err := e.run("purge", "colors")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, model.IsPurgeDenied(err))

	e.mustRun("history", "colors")
}

func TestPurge_AllowedByProperties(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()
	props := e.writeFile("purge.yaml", "dropHistory:\n  class.colors: true\n")

	out := e.mustRun("purge", "colors", "--properties", props)
	assert.Equal(t, "purged class:colors\n", out)

	_, _, err := e.run("history", "colors")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestPurge_PropertiesFromEnvironment(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()
	t.Setenv("CLASSVER_PROPERTIES", e.writeFile("purge.yaml", "dropHistory: true\n"))

	out := e.mustRun("purge", "colors")
	assert.Equal(t, "purged class:colors\n", out)
}

func TestPurge_MissingPropertiesFile(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	_, _, err := e.run("purge", "colors", "--properties", filepath.Join(e.dir, "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInit_RecordsInitializedRevision(t *testing.T) {
	e := newCLIEnv(t)

	out := e.mustRun("init", "colors")
	assert.True(t, strings.HasPrefix(out, "class:colors\t1\tinitialized\t"), out)

	_, _, err := e.run("show", "colors")
	require.Error(t, err)
	assert.True(t, model.IsUninitialized(err))
}

func TestRestore_UndoesDeletion(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()
	e.mustRun("apply", e.writeFile("delete_colors.yaml", deleteColorsScript))

	_, _, err := e.run("show", "colors")
	require.Error(t, err)
	assert.True(t, model.IsDeleted(err))

	out := e.mustRun("restore", "colors")
	assert.True(t, strings.HasPrefix(out, "class:colors\t6\trepaired\t"), out)

	root := e.mustRun("show", "colors")
	assert.Contains(t, root, `ID="red"`)
}

func TestRestore_RequiresDeletedHead(t *testing.T) {
	e := newCLIEnv(t)
	e.loadColors()

	_, _, err := e.run("restore", "colors")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, model.IsIllegalState(err))
}

func TestVerbose_ReportsMetrics(t *testing.T) {
	e := newCLIEnv(t)

	_, stderr, err := e.run("load", filepath.Join("testdata", "colors.cue"), "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stderr, "loaded colors")
	assert.Contains(t, stderr, "classver_")
}

func TestTestCommand(t *testing.T) {
	e := newCLIEnv(t)
	scripts := filepath.Join(e.dir, "scripts")
	e.writeFile(filepath.Join("scripts", "seed.yaml"), `name: seed
transactions:
  - steps:
      - op: create
        root: colors
        labels: [{lang: en, text: Colors}]
      - op: create
        root: colors
        id: red
assertions:
  - type: children
    root: colors
    children: [red]
`)
	e.writeFile(filepath.Join("scripts", "notes.txt"), "not a script\n")

	t.Run("without_golden", func(t *testing.T) {
		out := e.mustRun("test", scripts)
		assert.Contains(t, out, "✓ seed")
		assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	})

	t.Run("update_writes_golden", func(t *testing.T) {
		e.mustRun("test", scripts, "--update")
		golden, err := os.ReadFile(filepath.Join(scripts, "golden", "seed.golden"))
		require.NoError(t, err)
		assert.Contains(t, string(golden), "script: seed")

		e.mustRun("test", scripts)
	})

	t.Run("mismatch_fails", func(t *testing.T) {
		e.writeFile(filepath.Join("scripts", "golden", "seed.golden"), "script: other\n")

		out, _, err := e.run("test", scripts)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ seed")
		assert.Contains(t, out, "does not match golden file")
	})

	t.Run("filter_and_json", func(t *testing.T) {
		out := e.mustRun("test", scripts, "--filter", "nothing*", "--format", "json")

		var result TestResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 0, result.Total)
		assert.Empty(t, result.Scripts)
	})

	t.Run("missing_dir", func(t *testing.T) {
		_, _, err := e.run("test", filepath.Join(e.dir, "absent"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestFindScriptFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "c.txt", "colors_red.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "golden"), 0o755))

	files, err := findScriptFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScriptFiles(dir, "colors*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "colors_red.yaml")}, files)

	_, err = findScriptFiles(dir, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scripts", "golden", "colors.golden"), goldenFilePath(filepath.Join("scripts", "colors.yaml")))
}
