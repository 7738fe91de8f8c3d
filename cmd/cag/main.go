package main

// #region imports
import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/config"
	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// #endregion

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region root

type rootFlags struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "cag",
		Short:         "Verify, revise and route generated career-guidance answers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("CAG_CONFIG"), "path to YAML config")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(flags),
		newVerifyCmd(flags),
		newReplayCmd(flags),
		newInspectCmd(flags),
		newStubGeneratorCmd(flags),
	)
	return root
}

// #endregion root

// #region helpers

func (f *rootFlags) logger() (*zap.Logger, error) {
	if f.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (f *rootFlags) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := f.logger()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger.Named("cag"), nil
}

// newGenerator builds the configured model client. The returned closer is
// never nil. A nil generator means drafting and revision are disabled.
func newGenerator(cfg config.Config, logger *zap.Logger) (generate.Generator, func() error, error) {
	noop := func() error { return nil }
	g := cfg.Generator

	switch g.Provider {
	case "none":
		return nil, noop, nil
	case "grpc":
		client, err := generate.NewGRPCClient(g.GRPCAddr)
		if err != nil {
			return nil, noop, fmt.Errorf("connect generator at %s: %w", g.GRPCAddr, err)
		}
		return client, client.Close, nil
	case "openai", "groq":
		baseURL, model := g.BaseURL, g.Model
		if g.Provider == "groq" {
			if baseURL == "" {
				baseURL = generate.GroqBaseURL
			}
			if model == "" {
				model = generate.GroqDefaultModel
			}
		}
		client, err := generate.NewOpenAIClient(generate.OpenAIConfig{
			APIKey:      g.APIKey,
			BaseURL:     baseURL,
			Model:       model,
			Temperature: g.Temperature,
			MaxTokens:   g.MaxTokens,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown generator provider %q", g.Provider)
}

// newPipeline wires the stages from cfg. rec may be nil.
func newPipeline(cfg config.Config, gen generate.Generator, rec pipeline.Recorder, logger *zap.Logger) *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Checker:   check.NewChecker(cfg.CheckConfig()),
		Scorer:    score.NewScorer(cfg.ScorePenalties()),
		Router:    router.NewRouter(cfg.RouterThresholds()),
		Generator: gen,
		Recorder:  rec,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})
}

// #endregion helpers
