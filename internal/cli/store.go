package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sonoscribe/sonoscribe/internal/config"
	"github.com/sonoscribe/sonoscribe/internal/queue"
)

// StoreCmd creates the store command.
// The env parameter provides injectable dependencies for testing.
func StoreCmd(env *Env) *cobra.Command {
	var (
		addr              string
		token             string
		spoolDir          string
		sweepInterval     time.Duration
		processingTimeout time.Duration
		retention         time.Duration
		logLevel          string
	)

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Run the job queue store",
		Long: `Run the HTTP job queue store that workers poll for transcription jobs.

Jobs enter the queue through POST /api/jobs or by dropping audio files into
the spool directory. A background sweep resets jobs whose worker stopped
reporting, and purges delivered result payloads after the retention window.`,
		Example: `  sonoscribe store --addr :8080 --spool /var/spool/sonoscribe
  sonoscribe store --token s3cret --processing-timeout 45m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, env, addr, token, spoolDir,
				sweepInterval, processingTimeout, retention, logLevel)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token required on API requests (default: config token)")
	cmd.Flags().StringVar(&spoolDir, "spool", "", "Directory watched for dropped audio files (default: config spool-dir)")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 30*time.Second, "How often stuck jobs are swept")
	cmd.Flags().DurationVar(&processingTimeout, "processing-timeout", 30*time.Minute, "Claim age after which a processing job is reset to pending")
	cmd.Flags().DurationVar(&retention, "retention", 24*time.Hour, "How long completed result payloads are kept")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

func runStore(cmd *cobra.Command, env *Env, addr, token, spoolDir string,
	sweepInterval, processingTimeout, retention time.Duration, logLevel string,
) error {
	ctx := cmd.Context()

	logger, err := env.newLogger(logLevel)
	if err != nil {
		return err
	}

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}
	if token == "" {
		token = cfg.Token
	}
	if spoolDir == "" {
		spoolDir = cfg.SpoolDir
	}

	if sweepInterval <= 0 {
		return fmt.Errorf("--sweep-interval must be positive, got %s", sweepInterval)
	}
	if processingTimeout <= 0 {
		return fmt.Errorf("--processing-timeout must be positive, got %s", processingTimeout)
	}
	if retention <= 0 {
		return fmt.Errorf("--retention must be positive, got %s", retention)
	}

	store := queue.NewStore()
	server := queue.NewServer(store,
		queue.WithAuthToken(token),
		queue.WithServerLogger(logger),
		queue.WithSweep(sweepInterval, processingTimeout, retention),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, addr)
	})
	if spoolDir != "" {
		spool := queue.NewSpool(store, config.ExpandPath(spoolDir), logger)
		g.Go(func() error {
			return spool.Run(gctx)
		})
	}

	return g.Wait()
}
