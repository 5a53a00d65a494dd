// Package device exposes a Tracer through file semantics: each Open gets
// its own export cursor, Write takes one control token, Read returns one
// exported line.
package device

import (
	"io/fs"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/roach88/ttp/internal/ttp"
)

// Name is the device name used in logs and by the control socket.
const Name = "ttp"

// Device is the control and export endpoint of a Tracer.
type Device struct {
	tracer *ttp.Tracer
	logger *zap.Logger
	open   atomic.Int64
}

// New wraps tracer. A nil logger discards output.
func New(tracer *ttp.Tracer, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{tracer: tracer, logger: logger.Named(Name)}
}

// Tracer returns the wrapped tracer.
func (d *Device) Tracer() *ttp.Tracer {
	return d.tracer
}

// OpenFiles returns the number of files currently open.
func (d *Device) OpenFiles() int64 {
	return d.open.Load()
}

// Open returns a new file with its export cursor at the beginning.
func (d *Device) Open() *File {
	d.open.Add(1)
	return &File{dev: d, session: d.tracer.Export()}
}

// File is one open handle on the device. It is not safe for concurrent
// use; open one file per goroutine.
type File struct {
	dev     *Device
	session *ttp.Session

	closeOnce sync.Once
	closed    bool
}

// Write applies one control token. Input longer than ttp.MaxCommandLen is
// truncated. On success the whole input counts as consumed.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if err := f.dev.tracer.Exec(string(p)); err != nil {
		f.dev.logger.Debug("control write rejected", zap.ByteString("input", p), zap.Error(err))
		return 0, err
	}
	return len(p), nil
}

// Read returns exactly one exported line per call and (0, io.EOF) at end
// of stream. p must hold ttp.MaxLineLen bytes; reading while armed fails
// with BUSY.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.session.Next(p)
}

// Rewind discards the export cursor and starts a new session, the
// equivalent of closing and reopening the device.
func (f *File) Rewind() {
	f.session = f.dev.tracer.Export()
}

// Close releases the file. Closing twice is harmless.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		f.closed = true
		f.dev.open.Add(-1)
	})
	return nil
}
