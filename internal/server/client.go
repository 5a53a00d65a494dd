package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/roach88/ttp/internal/ttp"
)

// Client is one connection to a ttp server, equivalent to one open file on
// the device. It is not safe for concurrent use.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to the Unix socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request line and returns the verb and remainder of
// the response.
func (c *Client) roundTrip(req string) (string, string, error) {
	if _, err := io.WriteString(c.conn, req+"\n"); err != nil {
		return "", "", fmt.Errorf("send request: %w", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	verb, rest, _ := strings.Cut(strings.TrimSuffix(line, "\n"), " ")
	return verb, rest, nil
}

// Exec sends one control token. Tracer failures come back as *ttp.Error.
func (c *Client) Exec(token string) error {
	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, "\r\n") {
		return &ttp.Error{Code: ttp.ErrCodeInvalidCommand, Op: "exec", Message: "token contains a newline"}
	}
	verb, rest, err := c.roundTrip(reqWrite + " " + token)
	if err != nil {
		return err
	}
	switch verb {
	case respOK:
		return nil
	case respErr:
		return parseError(rest, "exec")
	default:
		return fmt.Errorf("exec: unexpected response %q", verb)
	}
}

// Next returns the next exported line including its trailing newline, or
// io.EOF at end of stream.
func (c *Client) Next() (string, error) {
	verb, rest, err := c.roundTrip(reqRead)
	if err != nil {
		return "", err
	}
	switch verb {
	case respData:
		return rest + "\n", nil
	case respEOF:
		return "", io.EOF
	case respErr:
		return "", parseError(rest, "read")
	default:
		return "", fmt.Errorf("read: unexpected response %q", verb)
	}
}

// Drain copies every remaining exported line to w and returns the number
// of lines copied.
func (c *Client) Drain(w io.Writer) (int, error) {
	n := 0
	for {
		line, err := c.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if _, err := io.WriteString(w, line); err != nil {
			return n, err
		}
		n++
	}
}

// ReadAll returns every remaining exported line as one string.
func (c *Client) ReadAll() (string, error) {
	var b strings.Builder
	_, err := c.Drain(&b)
	return b.String(), err
}

// Rewind restarts this connection's export cursor.
func (c *Client) Rewind() error {
	verb, rest, err := c.roundTrip(reqRewind)
	if err != nil {
		return err
	}
	if verb == respErr {
		return parseError(rest, "rewind")
	}
	return nil
}

// Stats fetches the tracer's counters.
func (c *Client) Stats() (ttp.Stats, error) {
	verb, rest, err := c.roundTrip(reqStats)
	if err != nil {
		return ttp.Stats{}, err
	}
	switch verb {
	case respStats:
		var st ttp.Stats
		if err := json.Unmarshal([]byte(rest), &st); err != nil {
			return ttp.Stats{}, fmt.Errorf("decode stats: %w", err)
		}
		return st, nil
	case respErr:
		return ttp.Stats{}, parseError(rest, "stats")
	default:
		return ttp.Stats{}, fmt.Errorf("stats: unexpected response %q", verb)
	}
}
