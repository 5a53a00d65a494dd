package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ttp/internal/server"
	"github.com/roach88/ttp/internal/ttp"
)

// CtlOptions holds flags for the ctl command.
type CtlOptions struct {
	*RootOptions
	Socket string
	Stats  bool
}

// CtlResult reports what the ctl command did.
type CtlResult struct {
	Applied []string   `json:"applied"`
	Stats   *ttp.Stats `json:"stats,omitempty"`
}

// NewCtlCommand creates the ctl command.
func NewCtlCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CtlOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ctl [token...]",
		Short: "Send control tokens to a running server",
		Long: `Send control tokens to a running ttp server, in order.

Tokens:
  start       arm recording
  stop        disarm recording
  reset       empty every store (disarmed only)
  0|realtime  select the realtime clock (disarmed only)
  1|monotonic select the monotonic clock (disarmed only)

The first rejected token stops the command; earlier tokens stay applied.

Exit codes:
  0 - All tokens applied
  1 - A token was rejected by the tracer
  2 - Command error (no server, bad flags, etc.)

Examples:
  ttp ctl 1 start
  ttp ctl stop --stats
  ttp ctl reset --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.Stats {
				return NewExitError(ExitCommandError, "no control tokens given")
			}
			return runCtl(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Socket, "socket", "", "socket path (default from config)")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print tracer stats after the tokens")

	return cmd
}

func runCtl(ctx context.Context, opts *CtlOptions, tokens []string, cmd *cobra.Command) error {
	socket, err := resolveSocket(opts.RootOptions, opts.Socket)
	if err != nil {
		return err
	}

	client, err := server.Dial(ctx, socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	out := opts.formatter(cmd)
	result := CtlResult{Applied: []string{}}

	for _, token := range tokens {
		if err := client.Exec(token); err != nil {
			out.Failure(fmt.Sprintf("%q rejected", token), err)
			return WrapExitError(ExitFailure, fmt.Sprintf("control token %q rejected", token), err)
		}
		out.VerboseLog("applied %q", token)
		result.Applied = append(result.Applied, token)
	}

	if opts.Stats {
		st, err := client.Stats()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read stats", err)
		}
		result.Stats = &st
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	for _, token := range result.Applied {
		fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", token)
	}
	if result.Stats != nil {
		fmt.Fprintln(cmd.OutOrStdout(), result.Stats.String())
	}
	return nil
}

// resolveSocket returns flag if set, else the configured socket path.
func resolveSocket(opts *RootOptions, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Socket, nil
}
