// Package cli wires the store and worker daemons behind cobra commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sonoscribe/sonoscribe/internal/config"
	"github.com/sonoscribe/sonoscribe/internal/ffmpeg"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	Stderr io.Writer
	Getenv func(string) string

	ConfigLoader   ConfigLoader
	FFmpegResolver FFmpegResolver
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve() (string, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stderr:         os.Stderr,
		Getenv:         os.Getenv,
		ConfigLoader:   &defaultConfigLoader{},
		FFmpegResolver: &defaultFFmpegResolver{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// EnvOpenAIAPIKey is the environment variable holding the OpenAI API key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// newLogger builds the daemon logger writing to env.Stderr.
func (e *Env) newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("%w: %q (use debug, info, warn, or error)", ErrInvalidLogLevel, level)
	}

	return slog.New(slog.NewTextHandler(e.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve() (string, error) {
	return ffmpeg.Resolve()
}

// Compile-time interface verification.
var (
	_ ConfigLoader   = (*defaultConfigLoader)(nil)
	_ FFmpegResolver = (*defaultFFmpegResolver)(nil)
)
