package main

import (
	"fmt"
	"os"

	"github.com/rpattn/orderdesk/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "orderdesk",
	Short: "Order lookup and customer notification desk",
	Long: `orderdesk loads order lines from a spreadsheet or SQL table, finds them by
phone, order or tracking number, sends customer and supplier notifications, and
appends an audit trail to every notified line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "Config directory or config.yaml path")

	searchCmd.Flags().StringSliceVar(&searchSelect, "select", nil, "Explicitly select order/sku keys (e.g. 123-456/SOFA)")
	searchCmd.Flags().StringVar(&searchNotify, "notify", "", "Send this template to the selection")
	searchCmd.Flags().BoolVar(&searchClipboard, "clipboard", false, "Print tab-separated clipboard rows")

	importCmd.Flags().StringVar(&importWorksheet, "worksheet", "", "Worksheet to import (default: first)")
	importCmd.Flags().BoolVar(&importPositional, "positional", false, "Read the file with the legacy positional column layout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
