package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ttp/internal/store"
	"github.com/roach88/ttp/internal/ttp"
)

func recordTwoContexts(t *testing.T, tracer *ttp.Tracer) {
	t.Helper()
	require.NoError(t, tracer.Arm())
	tracer.Emit(0, 100)
	tracer.Emit(1, 200)
	tracer.Emit(0, 101)
	tracer.Emit(1, 201)
	tracer.Disarm()
}

func TestDumpCommand_Text(t *testing.T) {
	tracer, socket := startServer(t, 2, 8)
	recordTwoContexts(t, tracer)

	out, _, err := executeRoot(t, "dump", "--socket", socket)
	require.NoError(t, err)
	assertGolden(t, "dump_two_contexts", []byte(out))
}

func TestDumpCommand_BusyWhileArmed(t *testing.T) {
	tracer, socket := startServer(t, 1, 8)
	require.NoError(t, tracer.Arm())

	_, _, err := executeRoot(t, "dump", "--socket", socket)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, ttp.ErrBusy)
}

func TestDumpCommand_Archive(t *testing.T) {
	tracer, socket := startServer(t, 2, 8)
	recordTwoContexts(t, tracer)
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	out, _, err := executeRoot(t, "--format", "json", "dump", "--socket", socket, "--archive", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   DumpResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, resp.Data.Events)
	require.NotEmpty(t, resp.Data.Session)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	sess, err := db.GetSession(context.Background(), resp.Data.Session)
	require.NoError(t, err)
	assert.Equal(t, "monotonic", sess.Clock)
	assert.Equal(t, 2, sess.Contexts)
	assert.Equal(t, int64(4), sess.Events)
	assert.Equal(t, "socket:"+socket, sess.Source)

	records, err := db.ReadEvents(context.Background(), sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []ttp.Record{
		{ID: 200, Context: 1, Timestamp: 2000},
		{ID: 201, Context: 1, Timestamp: 4000},
	}, records)
}

func TestDumpCommand_Quiet(t *testing.T) {
	tracer, socket := startServer(t, 2, 8)
	recordTwoContexts(t, tracer)

	out, _, err := executeRoot(t, "dump", "--socket", socket, "--quiet")
	require.NoError(t, err)
	assert.Empty(t, out)
}
