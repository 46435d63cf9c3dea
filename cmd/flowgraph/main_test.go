package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowgraph/graph"
)

const greetWorkflow = `
name: greet
nodes:
  - id: name
    type: text-input
    config:
      text: Ada
  - id: remember
    type: memory-cell
    config:
      key: last-name
      operation: write
  - id: out
    type: output
    config:
      template: "Hello, {{input}}!"
edges:
  - {id: e1, source: name, target: remember}
  - {id: e2, source: remember, target: out}
`

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("flowgraph.yaml", []byte("store:\n  driver: memory\ntelemetry:\n  metrics: false\nlog:\n  level: error\n"), 0o600))
	path := filepath.Join(dir, "greet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(greetWorkflow), 0o600))
	return path
}

func execute(args ...string) (string, string, error) {
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunCommand(t *testing.T) {
	path := setup(t)

	stdout, _, err := execute("run", path)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!\n", stdout)

	stdout, _, err = execute("run", "--json", "--save", path)
	require.NoError(t, err)
	var run graph.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	assert.Equal(t, graph.RunCompleted, run.Status)
	assert.NotEmpty(t, run.WorkflowID)
	assert.Equal(t, [][]string{{"name"}, {"remember"}, {"out"}}, run.Waves)
}

func TestRunCommand_Events(t *testing.T) {
	path := setup(t)

	_, stderr, err := execute("run", "--events", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "run_started")
	assert.Contains(t, stderr, "run_completed")
}

func TestRunCommand_FailedRun(t *testing.T) {
	path := setup(t)
	broken := filepath.Join(filepath.Dir(path), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`
nodes:
  - {id: gen, type: text-generate, config: {provider: nobody, model: m, prompt: hi}}
  - {id: out, type: output}
edges:
  - {id: e1, source: gen, target: out}
`), 0o600))

	_, stderr, err := execute("run", broken)
	require.Error(t, err)
	assert.Contains(t, stderr, "UNKNOWN_PROVIDER")
}

func TestValidateCommand(t *testing.T) {
	path := setup(t)

	stdout, _, err := execute("validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wave 0: name")
	assert.Contains(t, stdout, "wave 2: out")

	cyclic := filepath.Join(filepath.Dir(path), "cyclic.json")
	require.NoError(t, os.WriteFile(cyclic, []byte(`{
		"nodes": [{"id": "a", "type": "merge"}, {"id": "b", "type": "merge"}],
		"edges": [{"id": "e1", "source": "a", "target": "b"}, {"id": "e2", "source": "b", "target": "a"}]
	}`), 0o600))

	_, stderr, err := execute("validate", path, cyclic)
	require.Error(t, err)
	assert.Contains(t, stderr, "cycle detected")
	assert.Contains(t, err.Error(), "1 of 2")
}
