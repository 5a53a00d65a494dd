package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsUnexpectedCtlError(t *testing.T) {
	scenario := mustParse(t, `
name: fails
description: "second start is not expected to fail"
steps:
  - ctl: start
  - ctl: start
  - ctl: stop
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `steps[1]: ctl "start" failed`)
	assert.Contains(t, result.Errors[0], "ALREADY_ARMED")
}

func TestRun_ReportsMissingCtlError(t *testing.T) {
	scenario := mustParse(t, `
name: fails
description: "first start does not fail"
steps:
  - ctl: start
    expect_error: ALREADY_ARMED
  - ctl: stop
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "succeeded, expected ALREADY_ARMED")
}

func TestRun_ReportsWrongCode(t *testing.T) {
	scenario := mustParse(t, `
name: fails
description: "reset while armed is not BUSY"
steps:
  - ctl: start
  - ctl: reset
    expect_error: BUSY
  - ctl: stop
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "failed with INVALID_WHILE_ARMED, expected BUSY")
}

func TestRun_ArmedAtEndCannotExport(t *testing.T) {
	scenario := mustParse(t, `
name: armed
description: "never stopped"
steps:
  - ctl: "1"
  - ctl: start
  - emit: { context: 0, id: 1 }
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "export: "))
	assert.Contains(t, result.Errors[0], "BUSY")
	assert.Equal(t, []uint64{1}, result.Counts)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: mismatch
description: "expects the wrong export"
capacity: 1
steps:
  - ctl: "1"
  - ctl: start
  - emit: { context: 0, id: 1 }
  - emit: { context: 0, id: 2 }
  - ctl: stop
expect:
  lines: ["1,0,1000", "2,0,2000"]
  overflow_notices: 0
  counts: [2]
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Expectation failed: lines")
	assert.Contains(t, result.Errors[0], "1,0,1000")
	assert.Contains(t, result.Errors[1], "Expectation failed: overflow_notices")
	assert.Contains(t, result.Errors[2], "Expectation failed: counts")
}

func TestRunWithLogger_OverflowNotice(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "overflow_drops_third.yaml"))
	require.NoError(t, err)

	result, err := RunWithLogger(scenario, zap.New(core))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, logs.FilterMessage("max events reached, dropping").Len())
}

func mustParse(t *testing.T, data string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	return scenario
}
