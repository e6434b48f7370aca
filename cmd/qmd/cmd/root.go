package cmd

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/logging"
	"github.com/qmd-search/qmd/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the qmd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qmd",
		Short: "On-device document search over personal notes and transcripts",
		Long: `qmd indexes markdown notes, transcripts, and documentation from
user-declared collections and searches them by keyword (BM25), semantic
similarity (vector), or a hybrid pipeline that expands the query and
reranks candidates with a local LLM.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("qmd version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the qmd log directory")
	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVSearchCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newMultiGetCmd())
	cmd.AddCommand(newCollectionCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newEmbedCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newProviderCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	logger = logger.With(slog.String("run_id", uuid.New().String()))
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
