package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/config"
	logpkg "github.com/kailas-cloud/taskctx/internal/logger"
	"github.com/kailas-cloud/taskctx/internal/version"
)

// envFlag overrides the ENV variable when set.
var envFlag string

var rootCmd = &cobra.Command{
	Use:   "taskctx",
	Short: "taskctx - task context retrieval service",
	Long: `taskctx finds the tasks and meeting transcripts relevant to a free-text query
or to an anchor task, ranks them by embedding similarity (or by substring match
when no LLM provider is configured) and manages the task relationship graph.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("taskctx version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "",
		"Config environment: local, prod (default: $ENV or local)")
}

// loadRuntime resolves the environment, loads its config and builds the logger.
func loadRuntime() (string, config.Config, *zap.Logger, error) {
	env := envFlag
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return env, cfg, logger, nil
}
