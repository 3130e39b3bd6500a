package cli

import (
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/sonoscribe/sonoscribe/internal/audio"
	"github.com/sonoscribe/sonoscribe/internal/engine"
	"github.com/sonoscribe/sonoscribe/internal/lang"
	"github.com/sonoscribe/sonoscribe/internal/queue"
	"github.com/sonoscribe/sonoscribe/internal/reformat"
	"github.com/sonoscribe/sonoscribe/internal/summarize"
	"github.com/sonoscribe/sonoscribe/internal/worker"
)

// clampParallel constrains concurrent API requests to [1, MaxRecommendedParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > engine.MaxRecommendedParallel {
		return engine.MaxRecommendedParallel
	}
	return n
}

// defaultWorkerID derives a stable, readable worker identity.
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// WorkerCmd creates the worker command.
// The env parameter provides injectable dependencies for testing.
func WorkerCmd(env *Env) *cobra.Command {
	var (
		storeURL          string
		workerID          string
		maxJobs           int
		pollInterval      time.Duration
		heartbeatInterval time.Duration
		parallel          int
		language          string
		chunkSize         time.Duration
		overlap           time.Duration
		splitThreshold    time.Duration
		fixedSplit        bool
		logLevel          string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a transcription worker",
		Long: `Run a worker that polls the queue store, claims pending jobs, and
processes each one: the audio is split into chunks at natural silence points,
transcribed in parallel, merged back into one transcript, reformatted, and
summarized.

Requires FFmpeg and an OpenAI API key.`,
		Example: `  sonoscribe worker --store http://10.0.0.5:8080
  sonoscribe worker --max-jobs 4 --parallel 8 -l en
  sonoscribe worker --fixed-split --chunk-size 5m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, env, workerOptions{
				storeURL:          storeURL,
				workerID:          workerID,
				maxJobs:           maxJobs,
				pollInterval:      pollInterval,
				heartbeatInterval: heartbeatInterval,
				parallel:          parallel,
				language:          language,
				chunkSize:         chunkSize,
				overlap:           overlap,
				splitThreshold:    splitThreshold,
				fixedSplit:        fixedSplit,
				logLevel:          logLevel,
			})
		},
	}

	cmd.Flags().StringVar(&storeURL, "store", "", "Queue store base URL (default: config store-url)")
	cmd.Flags().StringVar(&workerID, "id", "", "Worker identity reported to the store (default: <hostname>-<pid>)")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", 2, "Max jobs processed at once")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 5*time.Second, "How often the store is polled for pending jobs")
	cmd.Flags().DurationVar(&heartbeatInterval, "heartbeat-interval", 30*time.Second, "How often liveness is reported")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Max concurrent transcription requests per job (1-8)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Audio language hint (ISO 639-1 code, e.g. en, fr)")
	cmd.Flags().DurationVar(&chunkSize, "chunk-size", 10*time.Minute, "Target chunk length")
	cmd.Flags().DurationVar(&overlap, "overlap", 15*time.Second, "Overlap between adjacent chunks")
	cmd.Flags().DurationVar(&splitThreshold, "split-threshold", 10*time.Minute, "Audio at or below this length is transcribed whole")
	cmd.Flags().BoolVar(&fixedSplit, "fixed-split", false, "Cut at fixed intervals instead of silence points")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

type workerOptions struct {
	storeURL          string
	workerID          string
	maxJobs           int
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	parallel          int
	language          string
	chunkSize         time.Duration
	overlap           time.Duration
	splitThreshold    time.Duration
	fixedSplit        bool
	logLevel          string
}

// runWorker validates options, builds the pipeline, and runs the poll loop.
// Validation order: log level -> store URL -> API key -> split policy.
func runWorker(cmd *cobra.Command, env *Env, opts workerOptions) error {
	ctx := cmd.Context()

	logger, err := env.newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}
	if opts.storeURL == "" {
		opts.storeURL = cfg.StoreURL
	}
	if opts.storeURL == "" {
		return fmt.Errorf("%w (use --store or set %s in the config)", ErrStoreURLMissing, "store-url")
	}

	apiKey := env.Getenv(EnvOpenAIAPIKey)
	if apiKey == "" {
		return fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey)
	}

	if err := lang.Validate(opts.language); err != nil {
		return err
	}

	if opts.maxJobs < 1 {
		return fmt.Errorf("--max-jobs must be at least 1, got %d", opts.maxJobs)
	}
	if opts.pollInterval <= 0 {
		return fmt.Errorf("--poll-interval must be positive, got %s", opts.pollInterval)
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve()
	if err != nil {
		return err
	}

	policy := audio.Policy{
		SplitThreshold: opts.splitThreshold,
		ChunkSize:      opts.chunkSize,
		Overlap:        opts.overlap,
	}
	var splitter audio.Splitter
	if opts.fixedSplit {
		splitter, err = audio.NewTimeSplitter(ffmpegPath, policy)
	} else {
		splitter, err = audio.NewSilenceSplitter(ffmpegPath, policy,
			audio.WithWarnFunc(func(msg string) {
				logger.Warn(msg)
			}))
	}
	if err != nil {
		return err
	}

	client := openai.NewClient(apiKey)
	orch := worker.NewOrchestrator(
		audio.NewDurationProbe(ffmpegPath),
		splitter,
		engine.NewPool(engine.NewOpenAIEngine(client), clampParallel(opts.parallel)),
		reformat.NewReformatter(client, reformat.WithLogger(logger)),
		summarize.NewOpenAISummarizer(client),
		opts.overlap,
		worker.WithLanguage(lang.BaseCode(opts.language)),
		worker.WithOrchestratorLogger(logger),
	)

	if opts.workerID == "" {
		opts.workerID = defaultWorkerID()
	}
	protocol := queue.NewClient(opts.storeURL, queue.WithClientToken(cfg.Token))

	w := worker.NewWorker(opts.workerID, protocol, orch,
		worker.WithMaxJobs(opts.maxJobs),
		worker.WithPollInterval(opts.pollInterval),
		worker.WithHeartbeatInterval(opts.heartbeatInterval),
		worker.WithWorkerLogger(logger),
	)
	return w.Run(ctx)
}
