// Package config provides the propbridge configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomagicln/propbridge/pkg/check"
	"github.com/nomagicln/propbridge/pkg/notation"
	"github.com/nomagicln/propbridge/pkg/runner"
)

const (
	// FileName is the name of the configuration file in the config directory.
	FileName = "config.yaml"

	// DefaultStoreFile is the failure store created next to the config file.
	DefaultStoreFile = "failures.db"
)

// File is the propbridge configuration file.
type File struct {
	// Check holds the engine settings.
	Check CheckSection `yaml:"check"`

	// Runner holds the tracing runner settings.
	Runner RunnerSection `yaml:"runner"`

	// Notation holds the counterexample rendering settings.
	Notation NotationSection `yaml:"notation"`

	// Store locates the failure store.
	Store StoreSection `yaml:"store"`
}

// CheckSection maps to check.Config.
type CheckSection struct {
	MaxTest     int     `yaml:"max_test"`
	MaxRejected float64 `yaml:"max_rejected"`
	StartSize   int     `yaml:"start_size"`
	EndSize     int     `yaml:"end_size"`
	MaxShrinks  int     `yaml:"max_shrinks"`
	Workers     int     `yaml:"workers"`

	// Seed replays a run when set.
	Seed int64 `yaml:"seed,omitempty"`
}

// RunnerSection maps to runner.Config.
type RunnerSection struct {
	TraceRuns        bool     `yaml:"trace_runs"`
	ThrowOnFailure   bool     `yaml:"throw_on_failure"`
	TraceDiagnostics bool     `yaml:"trace_diagnostics"`
	CloseTimeout     Duration `yaml:"close_timeout,omitempty"`
}

// NotationSection maps to notation.Config.
type NotationSection struct {
	Format            string `yaml:"format"`
	PreferObjectInit  bool   `yaml:"prefer_object_init"`
	IncludeParamNames bool   `yaml:"include_param_names"`
	IncludeFullNames  bool   `yaml:"include_full_names"`
	SkipAssignment    bool   `yaml:"skip_assignment"`
}

// StoreSection locates the failure store. A relative path is resolved
// against the config directory.
type StoreSection struct {
	Path string `yaml:"path"`
}

// Duration is a wrapper around time.Duration for YAML serialization.
type Duration struct {
	time.Duration
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *File {
	return &File{
		Check: CheckSection{
			MaxTest:     check.DefaultMaxTest,
			MaxRejected: check.DefaultMaxRejected,
			StartSize:   check.DefaultStartSize,
			EndSize:     check.DefaultEndSize,
			MaxShrinks:  check.DefaultMaxShrinks,
			Workers:     1,
		},
		Runner: RunnerSection{
			CloseTimeout: Duration{Duration: runner.DefaultCloseTimeout},
		},
		Notation: NotationSection{
			Format: string(notation.FormatGo),
		},
		Store: StoreSection{
			Path: DefaultStoreFile,
		},
	}
}

// GetConfigDir returns the platform-specific configuration directory.
func GetConfigDir() (string, error) {
	// Check for override environment variable
	if dir := os.Getenv("PROPBRIDGE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		// macOS: ~/Library/Application Support/propbridge
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support", "propbridge")

	case "windows":
		// Windows: %APPDATA%\propbridge
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		baseDir = filepath.Join(appData, "propbridge")

	default:
		// Linux/Unix: ~/.config/propbridge (XDG Base Directory Specification)
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			xdgConfig = filepath.Join(homeDir, ".config")
		}
		baseDir = filepath.Join(xdgConfig, "propbridge")
	}

	return baseDir, nil
}

// DefaultPath returns the config file location: PROPBRIDGE_CONFIG when
// set, otherwise config.yaml in the config directory.
func DefaultPath() (string, error) {
	if path := os.Getenv("PROPBRIDGE_CONFIG"); path != "" {
		return expandHomeDirectory(path), nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads and validates the config file at path. Missing sections keep
// their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	f.Store.Path = resolveStorePath(filepath.Dir(path), f.Store.Path)
	return f, nil
}

// LoadDefault loads the file at DefaultPath, falling back to Default when
// it does not exist.
func LoadDefault() (*File, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	f, err := Load(path)
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		f = Default()
		f.Store.Path = resolveStorePath(filepath.Dir(path), f.Store.Path)
		return f, nil
	}
	return f, err
}

// Save validates f and writes it to path atomically.
func Save(path string, f *File) error {
	if f == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	// Write atomically by writing to temp file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the ranges of every setting.
func (f *File) Validate() error {
	c := f.Check
	switch {
	case c.MaxTest <= 0:
		return &ValidationError{Field: "check.max_test", Reason: "must be positive"}
	case c.MaxRejected < 0:
		return &ValidationError{Field: "check.max_rejected", Reason: "cannot be negative"}
	case c.StartSize < 0:
		return &ValidationError{Field: "check.start_size", Reason: "cannot be negative"}
	case c.EndSize < c.StartSize:
		return &ValidationError{Field: "check.end_size", Reason: "must not be below start_size"}
	case c.MaxShrinks < 0:
		return &ValidationError{Field: "check.max_shrinks", Reason: "cannot be negative"}
	case c.Workers < 0:
		return &ValidationError{Field: "check.workers", Reason: "cannot be negative"}
	}

	if f.Runner.CloseTimeout.Duration < 0 {
		return &ValidationError{Field: "runner.close_timeout", Reason: "cannot be negative"}
	}

	if !notation.ValidateFormat(f.Notation.Format) {
		return &ValidationError{
			Field:  "notation.format",
			Reason: fmt.Sprintf("must be one of %s", strings.Join(notation.ListFormats(), ", ")),
		}
	}

	return nil
}

// CheckOptions returns the engine overrides of the file.
func (f *File) CheckOptions() []check.Option {
	opts := []check.Option{
		check.MaxTest(f.Check.MaxTest),
		check.MaxRejected(f.Check.MaxRejected),
		check.StartSize(f.Check.StartSize),
		check.EndSize(f.Check.EndSize),
		check.MaxShrinks(f.Check.MaxShrinks),
		check.Workers(f.Check.Workers),
	}
	if f.Check.Seed != 0 {
		opts = append(opts, check.Replay(f.Check.Seed))
	}
	return opts
}

// RunnerConfig returns the tracing runner configuration of the file.
// Diagnostics share the Events of runner.TraceDiagnosticsConfig.
func (f *File) RunnerConfig() runner.Config {
	rc := runner.DefaultConfig()
	if f.Runner.TraceDiagnostics {
		rc = runner.TraceDiagnosticsConfig()
	}
	return rc.With(
		runner.TraceRuns(f.Runner.TraceRuns),
		runner.ThrowOnFailure(f.Runner.ThrowOnFailure),
		runner.CloseTimeout(f.Runner.CloseTimeout.Duration),
	)
}

// NotationConfig returns the rendering configuration of the file.
func (f *File) NotationConfig() notation.Config {
	n := f.Notation
	return notation.Default().With(
		notation.WithFormat(notation.Format(n.Format)),
		notation.WithPreferObjectInitialization(n.PreferObjectInit),
		notation.WithIncludeParameterNames(n.IncludeParamNames),
		notation.WithIncludeFullTypeNames(n.IncludeFullNames),
		notation.WithSkipCreateAssignment(n.SkipAssignment),
	)
}

func resolveStorePath(dir, path string) string {
	if path == "" {
		path = DefaultStoreFile
	}
	if path == ":memory:" {
		return path
	}
	path = expandHomeDirectory(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// expandHomeDirectory expands ~ in the path to the user's home directory.
func expandHomeDirectory(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	return path
}

// Error Types

// NotFoundError indicates the config file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file '%s' does not exist", e.Path)
}

// ValidationError reports an out-of-range setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
