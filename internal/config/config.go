// Package config loads ttp settings from a YAML file and TTP_* environment
// variables, and validates them against an embedded CUE schema.
//
// Precedence, lowest first: built-in defaults, the YAML file, the
// environment. Command-line flags are applied by the CLI on top.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ttp/internal/clock"
	"github.com/roach88/ttp/internal/ttp"
)

//go:embed schema.cue
var schemaCUE string

// Config holds every tunable of a ttp process.
type Config struct {
	// Contexts is the number of per-context stores.
	Contexts int `yaml:"contexts" json:"contexts"`

	// Capacity is the number of events each store holds.
	Capacity int `yaml:"capacity" json:"capacity"`

	// MaxMemory caps total event storage in bytes; 0 disables the cap.
	MaxMemory uint64 `yaml:"max_memory" json:"max_memory"`

	// Clock is the initial clock source: unset, realtime or monotonic.
	Clock string `yaml:"clock" json:"clock"`

	// MonotonicOffset is added to monotonic readings, in nanoseconds.
	MonotonicOffset int64 `yaml:"monotonic_offset_ns" json:"monotonic_offset_ns"`

	// TimeNamespacePID, when non-zero, translates monotonic readings into
	// the time namespace of that process. Only the difference between its
	// offsets and this process's own is added, since clock_gettime already
	// applies the latter.
	TimeNamespacePID int `yaml:"time_namespace_pid" json:"time_namespace_pid"`

	// Socket is the control socket path used by serve, ctl and dump.
	Socket string `yaml:"socket" json:"socket"`

	// Archive is an optional SQLite path that dump and bench write to.
	Archive string `yaml:"archive" json:"archive"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Contexts: runtime.NumCPU(),
		Capacity: ttp.DefaultCapacity,
		Clock:    clock.Unset.String(),
		Socket:   filepath.Join(os.TempDir(), "ttp.sock"),
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and the process environment, validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile decodes the YAML file over c. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TTP_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"TTP_CONTEXTS", &c.Contexts},
		{"TTP_CAPACITY", &c.Capacity},
	}
	for _, e := range ints {
		if v, ok := lookup(e.name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = n
		}
	}

	if v, ok := lookup("TTP_MAX_MEMORY"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TTP_MAX_MEMORY: %w", err)
		}
		c.MaxMemory = n
	}
	if v, ok := lookup("TTP_MONOTONIC_OFFSET_NS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TTP_MONOTONIC_OFFSET_NS: %w", err)
		}
		c.MonotonicOffset = n
	}

	if v, ok := lookup("TTP_TIME_NAMESPACE_PID"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TTP_TIME_NAMESPACE_PID: %w", err)
		}
		c.TimeNamespacePID = n
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"TTP_CLOCK", &c.Clock},
		{"TTP_SOCKET", &c.Socket},
		{"TTP_ARCHIVE", &c.Archive},
		{"TTP_LOG_LEVEL", &c.Log.Level},
		{"TTP_LOG_ENCODING", &c.Log.Encoding},
	}
	for _, e := range strs {
		if v, ok := lookup(e.name); ok {
			*e.dst = v
		}
	}
	return nil
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// ClockSource returns the parsed initial clock selection.
func (c Config) ClockSource() (clock.Source, error) {
	return clock.ParseSource(c.Clock)
}

// TracerOptions converts c into options for ttp.New.
func (c Config) TracerOptions(logger *zap.Logger) (ttp.Options, error) {
	src, err := c.ClockSource()
	if err != nil {
		return ttp.Options{}, err
	}
	offset := c.MonotonicOffset
	if c.TimeNamespacePID != 0 {
		ns, err := clock.TimeNamespaceDelta(clock.TimeNamespaceOffsetsPath(c.TimeNamespacePID), clock.DefaultTimeNamespaceOffsets)
		if err != nil {
			return ttp.Options{}, fmt.Errorf("time namespace offset: %w", err)
		}
		offset += ns
	}
	return ttp.Options{
		Contexts:  c.Contexts,
		Capacity:  c.Capacity,
		MaxMemory: c.MaxMemory,
		Clock:     src,
		Reader:    clock.NewSystem(offset),
		Logger:    logger,
	}, nil
}
