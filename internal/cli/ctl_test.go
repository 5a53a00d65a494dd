package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ttp/internal/ttp"
)

func TestCtlCommand_AppliesTokens(t *testing.T) {
	tracer, socket := startServer(t, 1, 4)

	out, _, err := executeRoot(t, "ctl", "--socket", socket, "0", "start")
	require.NoError(t, err)
	assert.Equal(t, "ok 0\nok start\n", out)
	assert.True(t, tracer.Armed())

	_, _, err = executeRoot(t, "ctl", "--socket", socket, "stop")
	require.NoError(t, err)
	assert.False(t, tracer.Armed())
}

func TestCtlCommand_RejectedToken(t *testing.T) {
	tracer, socket := startServer(t, 1, 4)
	require.NoError(t, tracer.Arm())

	out, _, err := executeRoot(t, "ctl", "--socket", socket, "reset")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, ttp.ErrInvalidWhileArmed)
	assert.Contains(t, out, "Error [INVALID_WHILE_ARMED]")
}

func TestCtlCommand_StopsAtFirstRejection(t *testing.T) {
	tracer, socket := startServer(t, 1, 4)

	_, _, err := executeRoot(t, "ctl", "--socket", socket, "start", "bogus", "stop")
	require.Error(t, err)
	assert.ErrorIs(t, err, ttp.ErrInvalidCommand)
	assert.True(t, tracer.Armed(), "tokens after the rejected one must not run")
}

func TestCtlCommand_StatsJSON(t *testing.T) {
	tracer, socket := startServer(t, 2, 1)
	require.NoError(t, tracer.Arm())
	tracer.Emit(0, 1)
	tracer.Emit(0, 2)

	out, _, err := executeRoot(t, "--format", "json", "ctl", "--socket", socket, "stop", "--stats")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   CtlResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"stop"}, resp.Data.Applied)
	require.NotNil(t, resp.Data.Stats)
	assert.False(t, resp.Data.Stats.Armed)
	assert.Equal(t, uint64(1), resp.Data.Stats.Events)
	assert.Equal(t, uint64(1), resp.Data.Stats.Dropped)
	assert.Equal(t, uint32(1), resp.Data.Stats.OverflowNotices)
}

func TestCtlCommand_NoTokens(t *testing.T) {
	_, _, err := executeRoot(t, "ctl", "--socket", "/nonexistent.sock")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCtlCommand_NoServer(t *testing.T) {
	_, _, err := executeRoot(t, "ctl", "--socket", "/nonexistent/ttp.sock", "start")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to connect")
}
