package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/ttp/internal/clock"
	"github.com/roach88/ttp/internal/store"
	"github.com/roach88/ttp/internal/ttp"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Contexts int
	Events   int
	Capacity int
	Clock    string
	Archive  string
}

// BenchResult reports one bench run.
type BenchResult struct {
	Contexts  int       `json:"contexts"`
	Events    int       `json:"events_per_context"`
	Capacity  int       `json:"capacity"`
	Emits     int       `json:"emits"`
	ElapsedNs int64     `json:"elapsed_ns"`
	NsPerEmit float64   `json:"ns_per_emit"`
	Stats     ttp.Stats `json:"stats"`
	Session   string    `json:"archive_session,omitempty"`
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure emit cost on an in-process tracer",
		Long: `Arm an in-process tracer, emit from one goroutine per context, disarm,
and report timing plus the tracer's counters.

Each goroutine owns its context handle, so emits never contend. Events past
--capacity are dropped and counted.

Examples:
  ttp bench
  ttp bench --contexts 8 --events 1000000 --capacity 1000000
  ttp bench --capacity 10 --archive ./ttp.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Contexts, "contexts", 0, "number of contexts (default from config)")
	cmd.Flags().IntVar(&opts.Events, "events", 100000, "events emitted per context")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "events per context (default from config)")
	cmd.Flags().StringVar(&opts.Clock, "clock", "monotonic", "clock: realtime|monotonic")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "store the export in this SQLite archive")

	return cmd
}

func runBench(ctx context.Context, opts *BenchOptions, cmd *cobra.Command) error {
	if opts.Events < 0 {
		return NewExitError(ExitCommandError, "--events must not be negative")
	}
	src, err := clock.ParseSource(opts.Clock)
	if err != nil || src == clock.Unset {
		return NewExitError(ExitCommandError, fmt.Sprintf("--clock must be realtime or monotonic, got %q", opts.Clock))
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Contexts != 0 {
		cfg.Contexts = opts.Contexts
	}
	if opts.Capacity != 0 {
		cfg.Capacity = opts.Capacity
	}
	cfg.Clock = src.String()
	if err := cfg.Validate(); err != nil {
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

	elapsed, err := emitAll(tracer, opts.Events)
	if err != nil {
		return WrapExitError(ExitFailure, "bench failed", err)
	}

	stats, err := tracer.Stats()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read stats", err)
	}

	result := BenchResult{
		Contexts:  tracer.Contexts(),
		Events:    opts.Events,
		Capacity:  tracer.Capacity(),
		Emits:     tracer.Contexts() * opts.Events,
		ElapsedNs: elapsed.Nanoseconds(),
		Stats:     stats,
	}
	if result.Emits > 0 {
		result.NsPerEmit = float64(elapsed.Nanoseconds()) / float64(result.Emits)
	}

	if opts.Archive != "" {
		id, err := archiveTracer(ctx, opts.Archive, tracer, stats)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to archive export", err)
		}
		result.Session = id
	}

	logger.Debug("bench finished", zap.Stringer("stats", stats), zap.Duration("elapsed", elapsed))

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "contexts:    %d\n", result.Contexts)
	fmt.Fprintf(w, "emits:       %d (%d per context)\n", result.Emits, result.Events)
	fmt.Fprintf(w, "recorded:    %d\n", stats.Events)
	fmt.Fprintf(w, "dropped:     %d\n", stats.Dropped)
	fmt.Fprintf(w, "elapsed:     %s\n", elapsed)
	fmt.Fprintf(w, "ns/emit:     %.1f\n", result.NsPerEmit)
	if result.Session != "" {
		fmt.Fprintf(w, "archived as: %s\n", result.Session)
	}
	return nil
}

// emitAll arms tracer, emits events ids 0..events-1 from one goroutine per
// context, and disarms. The returned duration covers the emits only.
func emitAll(tracer *ttp.Tracer, events int) (time.Duration, error) {
	handles := make([]*ttp.Handle, tracer.Contexts())
	for i := range handles {
		h, err := tracer.Context(i)
		if err != nil {
			return 0, err
		}
		handles[i] = h
	}

	if err := tracer.Arm(); err != nil {
		return 0, err
	}
	defer tracer.Disarm()

	var ready, done sync.WaitGroup
	start := make(chan struct{})
	for _, h := range handles {
		h := h
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			ready.Done()
			<-start
			for id := 0; id < events; id++ {
				h.Emit(uint32(id))
			}
		}()
	}

	ready.Wait()
	began := time.Now()
	close(start)
	done.Wait()
	return time.Since(began), nil
}

// archiveTracer drains a disarmed tracer into a new archive session.
func archiveTracer(ctx context.Context, path string, tracer *ttp.Tracer, stats ttp.Stats) (string, error) {
	db, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	w, err := db.BeginSession(ctx, store.Session{
		Source:   "bench",
		Clock:    stats.Clock,
		Contexts: stats.Contexts,
		Capacity: stats.Capacity,
	})
	if err != nil {
		return "", err
	}
	if _, err := tracer.WriteTo(w); err != nil {
		w.Rollback()
		return "", err
	}
	sess, err := w.Commit()
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}
