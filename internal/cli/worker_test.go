package cli_test

import (
	"strings"
	"testing"

	"github.com/sonoscribe/sonoscribe/internal/audio"
	"github.com/sonoscribe/sonoscribe/internal/cli"
	"github.com/sonoscribe/sonoscribe/internal/config"
	"github.com/sonoscribe/sonoscribe/internal/lang"
)

// Validation tests only: a fully valid worker command starts the poll loop
// and never returns, so the happy path is covered by the worker package.

func TestWorkerCmd_RequiresStoreURL(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(config.Config{}, map[string]string{
		cli.EnvOpenAIAPIKey: "sk-test",
	})

	err := execute(t, cli.WorkerCmd(env))
	assertErrorIs(t, err, cli.ErrStoreURLMissing)
}

func TestWorkerCmd_StoreURLFromConfig(t *testing.T) {
	t.Parallel()

	// With a configured store URL the command moves past that check and
	// fails on the next one, the missing API key.
	env, _ := newTestEnv(config.Config{StoreURL: "http://localhost:8080"}, nil)

	err := execute(t, cli.WorkerCmd(env))
	assertErrorIs(t, err, cli.ErrAPIKeyMissing)
}

func TestWorkerCmd_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(config.Config{}, nil)

	err := execute(t, cli.WorkerCmd(env), "--store", "http://localhost:8080")
	assertErrorIs(t, err, cli.ErrAPIKeyMissing)
}

func TestWorkerCmd_RejectsInvalidLogLevel(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(config.Config{}, nil)

	err := execute(t, cli.WorkerCmd(env),
		"--store", "http://localhost:8080", "--log-level", "loud")
	assertErrorIs(t, err, cli.ErrInvalidLogLevel)
}

func TestWorkerCmd_RejectsOverlapLargerThanChunk(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(config.Config{}, map[string]string{
		cli.EnvOpenAIAPIKey: "sk-test",
	})

	err := execute(t, cli.WorkerCmd(env),
		"--store", "http://localhost:8080",
		"--chunk-size", "30s", "--overlap", "45s")
	assertErrorIs(t, err, audio.ErrInvalidOverlap)
}

func TestWorkerCmd_RejectsUnknownLanguage(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(config.Config{}, map[string]string{
		cli.EnvOpenAIAPIKey: "sk-test",
	})

	err := execute(t, cli.WorkerCmd(env),
		"--store", "http://localhost:8080", "-l", "klingon")
	assertErrorIs(t, err, lang.ErrInvalid)
}

func TestWorkerCmd_RejectsBadBounds(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(config.Config{}, map[string]string{
		cli.EnvOpenAIAPIKey: "sk-test",
	})

	err := execute(t, cli.WorkerCmd(env),
		"--store", "http://localhost:8080", "--max-jobs", "0")
	if err == nil || !strings.Contains(err.Error(), "--max-jobs") {
		t.Errorf("error = %v, want a --max-jobs bound error", err)
	}

	err = execute(t, cli.WorkerCmd(env),
		"--store", "http://localhost:8080", "--poll-interval", "0s")
	if err == nil || !strings.Contains(err.Error(), "--poll-interval") {
		t.Errorf("error = %v, want a --poll-interval bound error", err)
	}
}

func TestWorkerCmd_ConfigLoadFailureIsAWarning(t *testing.T) {
	t.Parallel()

	stderr := &strings.Builder{}
	env := cli.NewEnv(
		cli.WithStderr(stderr),
		cli.WithGetenv(func(string) string { return "" }),
		cli.WithConfigLoader(&fakeConfigLoader{err: errFakeConfig}),
		cli.WithFFmpegResolver(&fakeResolver{path: "/usr/bin/ffmpeg"}),
	)

	err := execute(t, cli.WorkerCmd(env))
	// The broken config surfaces as a warning, then validation continues.
	assertErrorIs(t, err, cli.ErrStoreURLMissing)
	if !strings.Contains(stderr.String(), "Warning") {
		t.Errorf("stderr = %q, want a config warning", stderr.String())
	}
}
