package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// Config holds the tunables for an engine and its audit journal.
type Config struct {
	MaxSteps      int         `json:"max_steps" yaml:"max_steps"`
	MergeWindowMS int         `json:"merge_window_ms" yaml:"merge_window_ms"`
	LogLevel      string      `json:"log_level" yaml:"log_level"`
	Audit         AuditConfig `json:"audit" yaml:"audit"`
}

// AuditConfig configures the SQLite audit journal.
type AuditConfig struct {
	// Path of the journal database. Empty disables auditing.
	Path string `json:"path" yaml:"path"`
}

// Default returns the engine defaults.
func Default() Config {
	return Config{
		MaxSteps:      engine.DefaultMaxSteps,
		MergeWindowMS: engine.DefaultMergeWindowMillis,
		LogLevel:      "info",
	}
}

// Load reads a .cue, .yaml or .yml file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q: must be .cue, .yaml or .yml", ext)
	}
}

// ParseCUE unifies src with the #Config schema and decodes the result.
// Unknown fields, negative bounds and unknown log levels are rejected by
// the schema itself.
func ParseCUE(src []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, fmt.Errorf("parse %s: %s", filename, cueDetails(err))
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %s", filename, cueDetails(err))
	}

	cfg := Default()
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", filename, err)
	}
	return cfg, validated(cfg)
}

// ParseYAML decodes data over the defaults, rejecting unknown fields.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, validated(cfg)
}

func validated(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// EngineOptions converts the config into engine options. logger may be nil.
func (c Config) EngineOptions(logger *slog.Logger) []engine.Option {
	opts := []engine.Option{
		engine.WithMaxSteps(c.MaxSteps),
		engine.WithMergeWindow(time.Duration(c.MergeWindowMS) * time.Millisecond),
	}
	if logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	return opts
}

// Level maps LogLevel onto slog. Unknown values fall back to Info.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func cueDetails(err error) string {
	return cueerrors.Details(err, nil)
}
