package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/ttp/internal/config"
	"github.com/roach88/ttp/internal/device"
	"github.com/roach88/ttp/internal/server"
	"github.com/roach88/ttp/internal/ttp"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Socket       string
	Contexts     int
	Capacity     int
	Clock        string
	EmitInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a tracer on a control socket",
		Long: `Allocate a tracer and serve its device on a Unix socket until interrupted.

Each socket connection behaves like one open file on the device: it can
write control tokens and read the export line by line.

With --emit-interval, one goroutine per context emits an increasing id on
its own handle at that interval, which is useful for exercising a client.

Examples:
  ttp serve
  ttp serve --socket /run/ttp.sock --contexts 4 --capacity 100000
  ttp serve --clock monotonic --emit-interval 10ms`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Socket, "socket", "", "socket path (default from config)")
	cmd.Flags().IntVar(&opts.Contexts, "contexts", 0, "number of contexts (default from config)")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "events per context (default from config)")
	cmd.Flags().StringVar(&opts.Clock, "clock", "", "initial clock: unset|realtime|monotonic")
	cmd.Flags().DurationVar(&opts.EmitInterval, "emit-interval", 0, "emit synthetic events at this interval")

	return cmd
}

// applyFlags overlays explicitly set flags on cfg.
func (o *ServeOptions) applyFlags(cfg *config.Config) error {
	if o.Socket != "" {
		cfg.Socket = o.Socket
	}
	if o.Contexts != 0 {
		cfg.Contexts = o.Contexts
	}
	if o.Capacity != 0 {
		cfg.Capacity = o.Capacity
	}
	if o.Clock != "" {
		cfg.Clock = o.Clock
	}
	return cfg.Validate()
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := opts.applyFlags(&cfg); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	logger, err := opts.newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	tracerOpts, err := cfg.TracerOptions(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid clock", err)
	}
	tracer, err := ttp.New(tracerOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to allocate tracer", err)
	}
	defer tracer.Close()

	ln, err := server.Listen(cfg.Socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	logger.Info("starting ttp server",
		zap.String("socket", cfg.Socket),
		zap.Int("contexts", tracer.Contexts()),
		zap.Int("capacity", tracer.Capacity()),
		zap.Stringer("clock", tracer.Clock()),
	)

	var wg sync.WaitGroup
	if opts.EmitInterval > 0 {
		if err := startEmitters(ctx, &wg, tracer, opts.EmitInterval); err != nil {
			ln.Close()
			return WrapExitError(ExitFailure, "failed to start emitters", err)
		}
	}

	srv := server.New(device.New(tracer, logger), logger)
	err = srv.Serve(ctx, ln)
	wg.Wait()
	if err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}

	fmt.Fprintln(opts.formatter(cmd).GetErrWriter(), "ttp server stopped")
	return nil
}

// startEmitters runs one goroutine per context, each owning its handle.
func startEmitters(ctx context.Context, wg *sync.WaitGroup, tracer *ttp.Tracer, interval time.Duration) error {
	for i := 0; i < tracer.Contexts(); i++ {
		h, err := tracer.Context(i)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			var id uint32
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					h.Emit(id)
					id++
				}
			}
		}()
	}
	return nil
}
