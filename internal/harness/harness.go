package harness

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/ttp/internal/clock"
	"github.com/roach88/ttp/internal/testutil"
	"github.com/roach88/ttp/internal/ttp"
)

// Harness executes one scenario against its own tracer.
type Harness struct {
	tracer *ttp.Tracer
	clock  *testutil.DeterministicClock
	logger *zap.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh tracer with no clock selected, so a
// scenario that never writes "0" or "1" records nothing. A step that
// fails its expectation is recorded in the result and the run continues.
// The returned error is reserved for failures to set up the tracer.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, nil)
}

// RunWithLogger is Run with tracer logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clk := testutil.NewDeterministicClock(ClockStep)
	tr, err := ttp.New(ttp.Options{
		Contexts: scenario.Contexts,
		Capacity: scenario.Capacity,
		Clock:    clock.Unset,
		Reader:   clk,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	defer tr.Close()

	h := &Harness{tracer: tr, clock: clk, logger: logger.Named("harness")}

	result := NewResult()
	h.executeSteps(scenario.Steps, result)
	h.collect(result)

	if scenario.Expect != nil {
		for _, msg := range EvaluateExpectation(result, scenario.Expect) {
			result.AddError(msg)
		}
	}
	return result, nil
}

// executeSteps runs every step in order.
func (h *Harness) executeSteps(steps []Step, result *Result) {
	for i, step := range steps {
		switch {
		case step.Ctl != "":
			h.executeCtl(i, step, result)
		case step.Emit != nil:
			h.tracer.Emit(step.Emit.Context, step.Emit.ID)
		case step.ClockAdvance != 0:
			h.clock.Advance(step.ClockAdvance / ClockStep)
		}
	}
}

func (h *Harness) executeCtl(i int, step Step, result *Result) {
	err := h.tracer.Exec(step.Ctl)
	got := ttp.CodeOf(err)
	want := ttp.ErrorCode(step.ExpectError)

	h.logger.Debug("ctl step",
		zap.Int("step", i),
		zap.String("token", step.Ctl),
		zap.String("code", string(got)),
	)

	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d]: ctl %q failed: %v", i, step.Ctl, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d]: ctl %q succeeded, expected %s", i, step.Ctl, want))
	case want != "" && got != want:
		result.AddError(fmt.Sprintf("steps[%d]: ctl %q failed with %s, expected %s", i, step.Ctl, got, want))
	}
}

// collect exports the tracer into result. A tracer left armed cannot be
// exported; that is reported as a failure.
func (h *Harness) collect(result *Result) {
	st, err := h.tracer.Stats()
	if err != nil {
		result.AddError(fmt.Sprintf("stats: %v", err))
		return
	}
	result.OverflowNotices = st.OverflowNotices
	result.Counts = make([]uint64, len(st.PerContext))
	for i, cs := range st.PerContext {
		result.Counts[i] = cs.Count
	}

	var out strings.Builder
	if _, err := h.tracer.WriteTo(&out); err != nil {
		result.AddError(fmt.Sprintf("export: %v", err))
		return
	}
	result.Export = out.String()
	if result.Export != "" {
		result.Lines = strings.Split(strings.TrimSuffix(result.Export, "\n"), "\n")
	}
}
