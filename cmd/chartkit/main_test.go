package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lampYAML = `
id: lamp
initial: dark
states:
  dark:
    on:
      TOGGLE:
        - target: lit
  lit:
    initial: dim
    entry: ["inc:switches"]
    children:
      - id: dim
        on:
          BRIGHTER:
            - target: bright
              guard: "level >= 2"
          LEVEL:
            - actions: ["set:level"]
      - id: bright
    on:
      TOGGLE:
        - target: dark
`

func writeChart(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	good := writeChart(t, "lamp.yaml", lampYAML)
	bad := writeChart(t, "bad.yaml", "id: bad\ninitial: a\nstates:\n  a:\n    on:\n      GO:\n        - target: nowhere\n")

	out, err := execute(t, "", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good+": lamp")
	assert.Contains(t, out, "4 states")

	assert.NotContains(t, out, "warn")

	island := writeChart(t, "island.yaml", "id: island\ninitial: a\nstates:\n  a: {}\n  b: {}\n")
	out, err = execute(t, "", "validate", island)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+island+": island")
	assert.Contains(t, out, `warn `+island+`: state "b" is unreachable from the initial state`)

	out, err = execute(t, "", "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, out, "DANGLING_TARGET")
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestGraph(t *testing.T) {
	path := writeChart(t, "lamp.yaml", lampYAML)

	out, err := execute(t, "", "graph", path, "--active", "lit,dim")
	require.NoError(t, err)
	assert.Contains(t, out, `digraph "lamp"`)
	assert.Contains(t, out, `subgraph "cluster_lit"`)

	out, err = execute(t, "", "graph", path, "-f", "mermaid")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n"))

	out, err = execute(t, "", "graph", path, "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "lamp"`)

	_, err = execute(t, "", "graph", path, "-f", "svg")
	assert.Error(t, err)
}

func TestDescribeWritesMarkdownWhenNotATerminal(t *testing.T) {
	out, err := execute(t, "", "describe", writeChart(t, "lamp.yaml", lampYAML))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# lamp\n"))
	assert.Contains(t, out, "```mermaid")
}

func TestRunWithEventsFlag(t *testing.T) {
	out, err := execute(t, "", "run", writeChart(t, "lamp.yaml", lampYAML), "--id", "lamp-1", "--events", "TOGGLE,BRIGHTER,TOGGLE")
	require.NoError(t, err)
	assert.Contains(t, out, "start lamp-1 [dark]")
	assert.Contains(t, out, "step  TOGGLE: dark -> lit,dim [dim]")
	assert.Contains(t, out, "skip  BRIGHTER")
	assert.Contains(t, out, "final [dark]")
}

func TestRunFromStdin(t *testing.T) {
	stdin := `
# raise the level, then go bright
TOGGLE
LEVEL 3
BRIGHTER
`
	out, err := execute(t, stdin, "run", writeChart(t, "lamp.yaml", lampYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "step  BRIGHTER: dim -> bright [bright]")
	assert.Contains(t, out, "final [bright]")
}

func TestRunReportsFailedEvents(t *testing.T) {
	chart := `
id: broken
initial: a
states:
  a:
    on:
      GO:
        - target: b
          actions: ["explode"]
  b: {}
`
	out, err := execute(t, "", "run", writeChart(t, "broken.yaml", chart), "--events", "GO")
	require.Error(t, err)
	assert.Contains(t, out, "error GO:")
	assert.Contains(t, out, `action "explode" not registered`)
}

func TestRunPersistAndResume(t *testing.T) {
	path := writeChart(t, "lamp.yaml", lampYAML)
	dir := t.TempDir()

	_, err := execute(t, "TOGGLE\nLEVEL 1\n", "run", path, "--id", "lamp-1", "--persist-dir", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "lamp-1.json"))

	out, err := execute(t, "BRIGHTER\nLEVEL 2\nBRIGHTER\n", "run", path, "--id", "lamp-1", "--persist-dir", dir, "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "start lamp-1 [dim]")
	assert.Contains(t, out, "skip  BRIGHTER")
	assert.Contains(t, out, "step  BRIGHTER: dim -> bright [bright]")

	_, err = execute(t, "", "run", path, "--resume", "--events", "TOGGLE")
	assert.ErrorContains(t, err, "--resume needs --id")
}

func TestReadEvents(t *testing.T) {
	events, err := readEvents(strings.NewReader("A\n\n# comment\nB {\"n\": 1}\nC 5\nD hello world\n"))
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "A", events[0].Type)
	assert.Nil(t, events[0].Data)
	assert.Equal(t, map[string]any{"n": float64(1)}, events[1].Data)
	assert.Equal(t, float64(5), events[2].Data)
	assert.Equal(t, "hello world", events[3].Data)

	_, err = readEvents(strings.NewReader("always\n"))
	assert.Error(t, err)
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "", "run", writeChart(t, "lamp.yaml", lampYAML), "--log-level", "loud", "--events", "TOGGLE")
	assert.ErrorContains(t, err, "unknown log level")
}
