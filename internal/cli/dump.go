package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ttp/internal/server"
	"github.com/roach88/ttp/internal/store"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Socket  string
	Archive string
	Quiet   bool
}

// DumpResult summarizes one dump.
type DumpResult struct {
	Events  int    `json:"events"`
	Session string `json:"archive_session,omitempty"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Export recorded events from a running server",
		Long: `Export every recorded event from a running ttp server.

Lines are written to stdout as "id,context,timestamp_ns". Recording must be
stopped first; an armed tracer refuses export with BUSY.

With --archive the export is also stored as one session in a SQLite
archive (see "ttp archive").

Examples:
  ttp dump > trace.csv
  ttp dump --archive ./ttp.db
  ttp dump --archive ./ttp.db --quiet --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Socket, "socket", "", "socket path (default from config)")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "also store the export in this SQLite archive")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print events")

	return cmd
}

func runDump(ctx context.Context, opts *DumpOptions, cmd *cobra.Command) error {
	socket, err := resolveSocket(opts.RootOptions, opts.Socket)
	if err != nil {
		return err
	}

	client, err := server.Dial(ctx, socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	// Stats first: it fails fast on a closed tracer and supplies the
	// archive metadata.
	stats, err := client.Stats()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read stats", err)
	}

	var sinks []io.Writer
	stdout := bufio.NewWriter(cmd.OutOrStdout())
	if !opts.Quiet && opts.Format != "json" {
		sinks = append(sinks, stdout)
	}

	var archive *store.SessionWriter
	if opts.Archive != "" {
		db, err := store.Open(opts.Archive)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open archive", err)
		}
		defer db.Close()

		archive, err = db.BeginSession(ctx, store.Session{
			Source:   "socket:" + socket,
			Clock:    stats.Clock,
			Contexts: stats.Contexts,
			Capacity: stats.Capacity,
		})
		if err != nil {
			return WrapExitError(ExitFailure, "failed to begin archive session", err)
		}
		sinks = append(sinks, archive)
	}

	n, err := client.Drain(io.MultiWriter(sinks...))
	if err != nil {
		if archive != nil {
			archive.Rollback()
		}
		return WrapExitError(ExitFailure, "export failed", err)
	}
	if err := stdout.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	result := DumpResult{Events: n}
	if archive != nil {
		sess, err := archive.Commit()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to commit archive session", err)
		}
		result.Session = sess.ID
	}

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		return out.Success(result)
	}
	if result.Session != "" {
		fmt.Fprintf(out.GetErrWriter(), "archived %d events as session %s\n", result.Events, result.Session)
	} else {
		out.VerboseLog("exported %d events", result.Events)
	}
	return nil
}
