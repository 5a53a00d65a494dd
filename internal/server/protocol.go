package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ttp/internal/ttp"
)

// Requests, one per line.
const (
	reqWrite  = "write"
	reqRead   = "read"
	reqRewind = "rewind"
	reqStats  = "stats"
)

// Responses, one per line.
const (
	respOK    = "ok"
	respData  = "data"
	respEOF   = "eof"
	respErr   = "err"
	respStats = "stats"
)

// codeInvalidRequest is reported for malformed protocol lines. It is not
// a tracer error code; the tracer never sees the request.
const codeInvalidRequest ttp.ErrorCode = "INVALID_REQUEST"

// codeInternal is reported for errors that carry no tracer code.
const codeInternal ttp.ErrorCode = "INTERNAL"

// formatError renders err as an "err <CODE> <message>" response.
func formatError(err error) string {
	code := ttp.CodeOf(err)
	if code == "" {
		code = codeInternal
	}
	msg := err.Error()
	var e *ttp.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	return fmt.Sprintf("%s %s %s", respErr, code, strings.ReplaceAll(msg, "\n", " "))
}

// parseError turns the remainder of an "err" response back into a
// *ttp.Error so callers can use errors.Is against the ttp sentinels.
func parseError(rest, op string) error {
	code, msg, _ := strings.Cut(rest, " ")
	return &ttp.Error{Code: ttp.ErrorCode(code), Op: op, Message: msg}
}
