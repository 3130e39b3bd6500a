package cli_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"

	"github.com/sonoscribe/sonoscribe/internal/cli"
	"github.com/sonoscribe/sonoscribe/internal/config"
)

// errFakeConfig simulates an unreadable config file.
var errFakeConfig = errors.New("config file unreadable")

// fakeConfigLoader returns a fixed config.
type fakeConfigLoader struct {
	cfg config.Config
	err error
}

func (f *fakeConfigLoader) Load() (config.Config, error) {
	return f.cfg, f.err
}

// fakeResolver resolves FFmpeg without touching the system.
type fakeResolver struct {
	path string
	err  error
}

func (f *fakeResolver) Resolve() (string, error) {
	return f.path, f.err
}

// newTestEnv builds an Env with everything faked out.
func newTestEnv(cfg config.Config, envVars map[string]string) (*cli.Env, *bytes.Buffer) {
	stderr := &bytes.Buffer{}
	env := cli.NewEnv(
		cli.WithStderr(stderr),
		cli.WithGetenv(func(key string) string {
			return envVars[key]
		}),
		cli.WithConfigLoader(&fakeConfigLoader{cfg: cfg}),
		cli.WithFFmpegResolver(&fakeResolver{path: "/usr/bin/ffmpeg"}),
	)
	return env, stderr
}

// execute runs a command with args and returns the error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd.ExecuteContext(context.Background())
}

// assertErrorIs fails unless err wraps target.
func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("error = %v, want %v", err, target)
	}
}
