package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ttp/internal/store"
	"github.com/roach88/ttp/internal/ttp"
)

// ArchiveOptions holds flags shared by the archive subcommands.
type ArchiveOptions struct {
	*RootOptions
	Database string
	Context  int
}

// ArchiveShowResult is the JSON payload of "archive show".
type ArchiveShowResult struct {
	Session store.Session `json:"session"`
	Events  []ttp.Record  `json:"events"`
}

// NewArchiveCommand creates the archive command and its subcommands.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived export sessions",
		Long: `Inspect export sessions stored by "ttp dump --archive" or "ttp bench --archive".

The archive path comes from --db, else from the config file or TTP_ARCHIVE.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite archive")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List archived sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveList(opts, cmd)
		},
	}

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one archived session in export format",
		Example: `  ttp archive show 0190a6f2-... --db ./ttp.db
  ttp archive show 0190a6f2-... --context 1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveShow(opts, args[0], cmd)
		},
	}
	show.Flags().IntVar(&opts.Context, "context", -1, "only this context (default all)")

	del := &cobra.Command{
		Use:           "delete <session-id>",
		Short:         "Delete one archived session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveDelete(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

// openArchive opens --db, or the configured archive.
func (o *ArchiveOptions) openArchive() (*store.Store, error) {
	path := o.Database
	if path == "" {
		cfg, err := o.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Archive
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no archive given: use --db or set archive in config")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return st, nil
}

func runArchiveList(opts *ArchiveOptions, cmd *cobra.Command) error {
	st, err := opts.openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListSessions(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions archived.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tCLOCK\tCONTEXTS\tEVENTS")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID,
			time.Unix(0, s.CreatedAt).UTC().Format(time.RFC3339),
			s.Source, s.Clock, s.Contexts, s.Events)
	}
	return tw.Flush()
}

func runArchiveShow(opts *ArchiveOptions, id string, cmd *cobra.Command) error {
	st, err := opts.openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.GetSession(cmd.Context(), id)
	if err != nil {
		return archiveLookupError(err)
	}
	records, err := st.ReadEvents(cmd.Context(), id, opts.Context)
	if err != nil {
		return archiveLookupError(err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(ArchiveShowResult{Session: sess, Events: records})
	}

	buf := make([]byte, 0, ttp.MaxLineLen)
	w := cmd.OutOrStdout()
	for _, r := range records {
		buf = ttp.AppendLine(buf[:0], r.Context, ttp.Event{ID: r.ID, Timestamp: r.Timestamp})
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}

func runArchiveDelete(opts *ArchiveOptions, id string, cmd *cobra.Command) error {
	st, err := opts.openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteSession(cmd.Context(), id); err != nil {
		return archiveLookupError(err)
	}
	return opts.formatter(cmd).Success(fmt.Sprintf("deleted session %s", id))
}

// archiveLookupError maps a missing session to a command error.
func archiveLookupError(err error) error {
	if errors.Is(err, store.ErrSessionNotFound) {
		return WrapExitError(ExitCommandError, "no such session", err)
	}
	return WrapExitError(ExitFailure, "archive read failed", err)
}
