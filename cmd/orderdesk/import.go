package main

import (
	"fmt"

	"github.com/rpattn/orderdesk/internal/config"
	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/repository"
	"github.com/rpattn/orderdesk/internal/sheet"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importWorksheet  string
	importPositional bool
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Copy order lines from a spreadsheet into the configured SQL table",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	if cfg.Source.Kind != config.SourcePostgres && cfg.Source.Kind != config.SourceSQLite {
		return fmt.Errorf("import needs a postgres or sqlite source, configured source is %q", cfg.Source.Kind)
	}
	ctx := cmd.Context()

	mapping := cfg.OrderMapping()
	if importPositional {
		mapping = orders.LegacyPositional()
	}
	store, err := sheet.NewStore(args[0], importWorksheet, "", mapping)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot, err := orders.Load(ctx, store, mapping)
	if err != nil {
		return err
	}
	for _, issue := range snapshot.Issues {
		logger.Warn("skipping row", zap.Int("row", issue.RowNumber), zap.String("reason", issue.Message))
	}

	backend, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	repo, ok := backend.(repository.OrderRepository)
	if !ok {
		return fmt.Errorf("source %q does not accept inserts", cfg.Source.Kind)
	}

	inserted, err := repo.Insert(ctx, snapshot.Records)
	if err != nil {
		return err
	}
	logger.Info("import finished",
		zap.String("file", args[0]),
		zap.String("worksheet", snapshot.Table),
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(snapshot.Issues)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d order lines from %s\n", inserted, args[0])
	return nil
}
