package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/ar-collections-go/internal/config"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg     *config.Config
	logger  *zap.Logger
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "collections",
	Short: "Accounts receivable collections service",
	Long:  "Ranks overdue invoices by collection priority and drafts segment-aware collection emails.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, rankCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
