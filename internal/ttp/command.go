package ttp

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/ttp/internal/clock"
)

// MaxCommandLen bounds a control token; longer input is truncated before
// parsing.
const MaxCommandLen = 31

// Command is a parsed control token.
type Command int

const (
	// CmdStart arms recording.
	CmdStart Command = iota + 1

	// CmdStop disarms recording.
	CmdStop

	// CmdReset empties every store.
	CmdReset

	// CmdClockRealtime selects clock.Realtime.
	CmdClockRealtime

	// CmdClockMonotonic selects clock.Monotonic.
	CmdClockMonotonic
)

var commandTokens = map[string]Command{
	"start":     CmdStart,
	"stop":      CmdStop,
	"reset":     CmdReset,
	"0":         CmdClockRealtime,
	"realtime":  CmdClockRealtime,
	"1":         CmdClockMonotonic,
	"monotonic": CmdClockMonotonic,
}

// String returns the canonical token for c.
func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdReset:
		return "reset"
	case CmdClockRealtime:
		return "0"
	case CmdClockMonotonic:
		return "1"
	default:
		return "invalid"
	}
}

// Source returns the clock source a clock command selects.
func (c Command) Source() (clock.Source, bool) {
	switch c {
	case CmdClockRealtime:
		return clock.Realtime, true
	case CmdClockMonotonic:
		return clock.Monotonic, true
	default:
		return clock.Unset, false
	}
}

// ParseCommand parses one control token. Surrounding whitespace (including
// the trailing newline of `echo start > dev`) is ignored and matching is
// case-insensitive.
func ParseCommand(token string) (Command, error) {
	if len(token) > MaxCommandLen {
		token = token[:MaxCommandLen]
	}
	key := cases.Fold().String(strings.TrimSpace(token))
	cmd, ok := commandTokens[key]
	if !ok {
		return 0, newError(ErrCodeInvalidCommand, "parse", "unrecognized command %q", strings.TrimSpace(token))
	}
	return cmd, nil
}
