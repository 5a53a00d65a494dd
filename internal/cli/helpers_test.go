package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ttp/internal/clock"
	"github.com/roach88/ttp/internal/device"
	"github.com/roach88/ttp/internal/server"
	"github.com/roach88/ttp/internal/testutil"
	"github.com/roach88/ttp/internal/ttp"
)

// startServer serves a fresh deterministic tracer and returns it with its
// socket path. The socket lives in a short temp dir because Unix socket
// paths are length-limited.
func startServer(t *testing.T, contexts, capacity int) (*ttp.Tracer, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "ttp")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	tracer, err := ttp.New(ttp.Options{
		Contexts: contexts,
		Capacity: capacity,
		Clock:    clock.Monotonic,
		Reader:   testutil.NewDeterministicClock(1000),
	})
	require.NoError(t, err)
	t.Cleanup(func() { tracer.Close() })

	path := filepath.Join(dir, "ttp.sock")
	ln, err := server.Listen(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.New(device.New(tracer, nil), nil).Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return tracer, path
}

// executeRoot runs the root command with args and returns stdout, stderr
// and the command error.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func assertGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
