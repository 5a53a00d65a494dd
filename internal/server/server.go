// Package server serves a ttp device over a Unix domain socket.
//
// Each connection is one open file on the device and therefore owns one
// export cursor. The protocol is line oriented:
//
//	write <token>   ->  ok | err <CODE> <message>
//	read            ->  data <id,context,timestamp_ns> | eof | err <CODE> <message>
//	rewind          ->  ok
//	stats           ->  stats <json> | err <CODE> <message>
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/ttp/internal/device"
	"github.com/roach88/ttp/internal/ttp"
)

// maxRequestLen bounds one request line.
const maxRequestLen = 256

// Server accepts control connections for one device.
type Server struct {
	dev    *device.Device
	logger *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a server for dev. A nil logger discards output.
func New(dev *device.Device, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		dev:    dev,
		logger: logger.Named("server"),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen creates a Unix socket at path, removing a stale socket file left
// by a previous process.
func Listen(path string) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled, then closes the
// listener and every open connection and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeConns()
	})
	defer stop()

	s.logger.Info("serving", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.track(conn)
		// Shutdown may have swept the tracked set before this conn joined it.
		if ctx.Err() != nil {
			s.untrack(conn)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// handle runs one connection as one open device file.
func (s *Server) handle(conn net.Conn) {
	f := s.dev.Open()
	defer f.Close()

	s.logger.Debug("connection opened")
	defer s.logger.Debug("connection closed")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxRequestLen), maxRequestLen)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		resp := s.dispatch(f, scanner.Text())
		if _, err := w.WriteString(resp + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("connection read failed", zap.Error(err))
	}
}

// dispatch executes one request line and returns the response line.
func (s *Server) dispatch(f *device.File, line string) string {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch verb {
	case reqWrite:
		if _, err := f.Write([]byte(arg)); err != nil {
			return formatError(err)
		}
		s.logger.Info("control command", zap.String("token", strings.TrimSpace(arg)))
		return respOK

	case reqRead:
		var buf [ttp.MaxLineLen]byte
		n, err := f.Read(buf[:])
		if err == io.EOF {
			return respEOF
		}
		if err != nil {
			return formatError(err)
		}
		return respData + " " + strings.TrimSuffix(string(buf[:n]), "\n")

	case reqRewind:
		f.Rewind()
		return respOK

	case reqStats:
		st, err := s.dev.Tracer().Stats()
		if err != nil {
			return formatError(err)
		}
		data, err := json.Marshal(st)
		if err != nil {
			return formatError(err)
		}
		return respStats + " " + string(data)

	default:
		return formatError(&ttp.Error{Code: codeInvalidRequest, Message: fmt.Sprintf("unknown request %q", verb)})
	}
}
