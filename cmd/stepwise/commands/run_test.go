package commands

import (
	"encoding/json"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/stepwise/internal/errors"
)

const problemsYAML = `problems:
  - name: sqrt2
    kind: bisection
    params:
      expression: x^2 - 2
      a: 1
      b: 2
  - kind: newton
    params:
      expression: (1-x)^2 + 100*(y-x^2)^2
      x0: [-1.2, 1]
  - name: from-data
    kind: secant
    params:
      mode: data
      interpolation: piecewise
      data:
        - {x: 0, y: -1.5}
        - {x: 1, y: -0.5}
        - {x: 2, y: 0.5}
        - {x: 3, y: 1.5}
      x0: 0.5
      x1: 2.5
`

func TestLoadProblems(t *testing.T) {
	problems, err := LoadProblems(strings.NewReader(problemsYAML))
	require.NoError(t, err)
	require.Len(t, problems, 3)

	assert.Equal(t, "sqrt2", problems[0].Name)
	assert.Equal(t, "newton-2", problems[1].Name)
	assert.Equal(t, "secant", problems[2].Kind)
}

func TestLoadProblemsRejectsBadFiles(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"no problems":   "problems: []\n",
		"unknown kind":  "problems:\n  - kind: simplex\n",
		"unknown field": "problems:\n  - kind: secant\n    parms: {}\n",
		"not yaml":      "problems: [\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProblems(strings.NewReader(content))
			assert.Error(t, err)
		})
	}

	_, err := LoadProblems(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoProblems)
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, "problems.yaml", problemsYAML)

	out, err := execute(t, "run", path)
	require.NoError(t, err)

	assert.Contains(t, out, "== sqrt2 (bisection)")
	assert.Contains(t, out, "== newton-2 (newton)")
	assert.Contains(t, out, "== from-data (secant)")
	assert.Equal(t, 2, strings.Count(out, "completed in"))
	assert.Contains(t, out, "converged after")
}

func TestRunCommandFileErrors(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, fs.ErrNotExist)
	var e *apperrors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "opening run file", e.Op)
	assert.NotEmpty(t, e.Stack)

	path := writeFile(t, "empty.yaml", "problems: []\n")
	_, err = execute(t, "run", path)
	require.ErrorIs(t, err, ErrNoProblems)
	assert.Equal(t, "loading "+path+": run file lists no problems", err.Error())
}

func TestRunCommandReportsFailures(t *testing.T) {
	path := writeFile(t, "problems.yaml", `problems:
  - name: no-bracket
    kind: bisection
    params: {expression: "x^2 + 1", a: -1, b: 1}
  - name: derivative
    kind: derivative
    params: {expression: "x^3", at: {x: 2}}
`)

	out, err := execute(t, "--json", "run", path)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 problems failed", err.Error())

	var results []struct {
		Name   string          `json:"name"`
		Error  string          `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	assert.NotEmpty(t, results[0].Error)
	assert.Empty(t, results[0].Result)

	assert.Empty(t, results[1].Error)
	var d struct {
		Value float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(results[1].Result, &d))
	assert.Equal(t, 12.0, d.Value)
}

func TestRunCommandTextFailure(t *testing.T) {
	path := writeFile(t, "problems.yaml", `problems:
  - name: bad
    kind: gmm
    params: {k: 0}
`)

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, out, "== bad (gmm)")
	assert.Contains(t, out, "error:")
}

func TestRunCommandPlotsEachProblem(t *testing.T) {
	path := writeFile(t, "problems.yaml", problemsYAML)
	base := filepath.Join(t.TempDir(), "trace.png")

	_, err := execute(t, "--plot", base, "run", path)
	require.NoError(t, err)

	assert.FileExists(t, plotPathFor(base, "sqrt2"))
	assert.FileExists(t, plotPathFor(base, "newton-2"))
	assert.FileExists(t, plotPathFor(base, "from-data"))
}
