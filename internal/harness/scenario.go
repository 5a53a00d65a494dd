package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ttp/internal/ttp"
)

// ClockStep is the nanoseconds the scenario clock advances per reading.
const ClockStep uint64 = 1000

// Scenario is one recording session driven step by step.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Contexts is the number of per-context stores. Defaults to 1.
	Contexts int `yaml:"contexts,omitempty"`

	// Capacity is the per-context store size. Defaults to ttp.DefaultCapacity.
	Capacity int `yaml:"capacity,omitempty"`

	// Steps run in order against a fresh tracer.
	Steps []Step `yaml:"steps"`

	// Expect is checked after the last step. Nil checks nothing beyond the
	// steps themselves.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Step is exactly one of a control token, an emit, or a clock advance.
type Step struct {
	// Ctl is a control token such as "start", "stop", "reset", "0" or "1".
	Ctl string `yaml:"ctl,omitempty"`

	// ExpectError is the error code Ctl must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Emit records one event.
	Emit *EmitStep `yaml:"emit,omitempty"`

	// ClockAdvance moves the scenario clock forward, in nanoseconds.
	ClockAdvance uint64 `yaml:"clock_advance,omitempty"`
}

// EmitStep names the context and id of one emitted event.
type EmitStep struct {
	Context int    `yaml:"context"`
	ID      uint32 `yaml:"id"`
}

// Expectation describes the tracer after the last step.
type Expectation struct {
	// Lines is the exact export, one entry per line without newline.
	Lines []string `yaml:"lines,omitempty"`

	// OverflowNotices is the expected number of overflow notices.
	OverflowNotices *uint32 `yaml:"overflow_notices,omitempty"`

	// Counts is the expected stored event count per context.
	Counts []uint64 `yaml:"counts,omitempty"`
}

// knownCodes are the codes a ctl step may expect.
var knownCodes = map[ttp.ErrorCode]bool{
	ttp.ErrCodeAlreadyArmed:      true,
	ttp.ErrCodeBusy:              true,
	ttp.ErrCodeInvalidWhileArmed: true,
	ttp.ErrCodeInvalidCommand:    true,
	ttp.ErrCodeClosed:            true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Contexts == 0 {
		scenario.Contexts = 1
	}
	if scenario.Capacity == 0 {
		scenario.Capacity = ttp.DefaultCapacity
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Contexts < 0 {
		return fmt.Errorf("contexts must be positive, got %d", s.Contexts)
	}
	if s.Capacity < 0 {
		return fmt.Errorf("capacity must be positive, got %d", s.Capacity)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, s.Contexts); err != nil {
			return err
		}
	}

	if s.Expect != nil && s.Expect.Counts != nil && len(s.Expect.Counts) != s.Contexts {
		return fmt.Errorf("expect.counts has %d entries, scenario has %d contexts", len(s.Expect.Counts), s.Contexts)
	}
	return nil
}

func validateStep(i int, step Step, contexts int) error {
	kinds := 0
	if step.Ctl != "" {
		kinds++
	}
	if step.Emit != nil {
		kinds++
	}
	if step.ClockAdvance != 0 {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of ctl, emit, clock_advance is required", i)
	}

	if step.ExpectError != "" {
		if step.Ctl == "" {
			return fmt.Errorf("steps[%d]: expect_error only applies to ctl steps", i)
		}
		if !knownCodes[ttp.ErrorCode(step.ExpectError)] {
			return fmt.Errorf("steps[%d]: unknown error code %q", i, step.ExpectError)
		}
	}
	if step.Emit != nil && (step.Emit.Context < 0 || step.Emit.Context >= contexts) {
		return fmt.Errorf("steps[%d]: emit context %d out of range [0,%d)", i, step.Emit.Context, contexts)
	}
	if step.ClockAdvance%ClockStep != 0 {
		return fmt.Errorf("steps[%d]: clock_advance must be a multiple of %d", i, ClockStep)
	}
	return nil
}
