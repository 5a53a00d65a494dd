package ttp

import (
	"fmt"
	"strconv"
	"strings"
)

// Event is one recorded trace point.
type Event struct {
	// ID is the caller-supplied identifier. The tracer never interprets it.
	ID uint32

	// Timestamp is in nanoseconds; its meaning depends on the clock source
	// that was selected when the event was recorded.
	Timestamp uint64
}

// MaxLineLen is the longest exported line: "4294967295,4294967295,18446744073709551615\n".
const MaxLineLen = 10 + 1 + 10 + 1 + 20 + 1

// Record is an exported event together with the context that recorded it.
type Record struct {
	ID        uint32 `json:"id"`
	Context   uint32 `json:"context"`
	Timestamp uint64 `json:"timestamp_ns"`
}

// AppendLine appends the export line for ev recorded on context ctx to dst.
// The line has the form "id,context,timestamp_ns\n".
func AppendLine(dst []byte, ctx uint32, ev Event) []byte {
	dst = strconv.AppendUint(dst, uint64(ev.ID), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(ctx), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, ev.Timestamp, 10)
	return append(dst, '\n')
}

// ParseLine parses one exported line. The trailing newline is optional.
func ParseLine(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("parse line %q: want 3 fields, got %d", line, len(parts))
	}

	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("parse line %q: id: %w", line, err)
	}
	ctx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("parse line %q: context: %w", line, err)
	}
	ts, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse line %q: timestamp: %w", line, err)
	}

	return Record{ID: uint32(id), Context: uint32(ctx), Timestamp: ts}, nil
}
