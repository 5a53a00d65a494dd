package harness

import (
	"fmt"
	"strings"
)

// ExpectationError describes one unmet expectation.
type ExpectationError struct {
	Field    string
	Expected string
	Actual   string
	Export   string
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Export != "" {
		fmt.Fprintf(&buf, "\nExport:\n")
		for _, line := range strings.Split(strings.TrimSuffix(e.Export, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateExpectation checks result against expect and returns one message
// per mismatch.
func EvaluateExpectation(result *Result, expect *Expectation) []string {
	var errs []string
	for _, err := range []error{
		checkLines(result, expect),
		checkOverflowNotices(result, expect),
		checkCounts(result, expect),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func checkLines(result *Result, expect *Expectation) error {
	if expect.Lines == nil {
		return nil
	}
	mismatch := len(result.Lines) != len(expect.Lines)
	for i := 0; !mismatch && i < len(expect.Lines); i++ {
		mismatch = result.Lines[i] != expect.Lines[i]
	}
	if !mismatch {
		return nil
	}
	return &ExpectationError{
		Field:    "lines",
		Expected: fmt.Sprintf("%d lines %q", len(expect.Lines), expect.Lines),
		Actual:   fmt.Sprintf("%d lines", len(result.Lines)),
		Export:   result.Export,
	}
}

func checkOverflowNotices(result *Result, expect *Expectation) error {
	if expect.OverflowNotices == nil || *expect.OverflowNotices == result.OverflowNotices {
		return nil
	}
	return &ExpectationError{
		Field:    "overflow_notices",
		Expected: fmt.Sprint(*expect.OverflowNotices),
		Actual:   fmt.Sprint(result.OverflowNotices),
	}
}

func checkCounts(result *Result, expect *Expectation) error {
	if expect.Counts == nil {
		return nil
	}
	mismatch := len(result.Counts) != len(expect.Counts)
	for i := 0; !mismatch && i < len(expect.Counts); i++ {
		mismatch = result.Counts[i] != expect.Counts[i]
	}
	if !mismatch {
		return nil
	}
	return &ExpectationError{
		Field:    "counts",
		Expected: fmt.Sprint(expect.Counts),
		Actual:   fmt.Sprint(result.Counts),
	}
}
