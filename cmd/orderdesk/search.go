package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/orderdesk/internal/dispatch"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/orders"

	"github.com/spf13/cobra"
)

var (
	searchSelect    []string
	searchNotify    string
	searchClipboard bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find order lines by phone, order or tracking number",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.cache.Snapshot(ctx)
	if err != nil {
		return err
	}
	matched := orders.SortByDate(orders.Search(snapshot.Records, args[0]), cfg.Source.SortDescending)

	selected, err := parseSelection(searchSelect)
	if err != nil {
		return err
	}
	selection := orders.ResolveSelection(matched, selected, a.dispatcher.BulkThreshold())

	out := cmd.OutOrStdout()
	for _, record := range selection.Records {
		if searchClipboard {
			fmt.Fprintln(out, record.ClipboardRow())
			continue
		}
		fmt.Fprintf(out, "%s\n%s\n\n", record.Ref(), record.Summary())
	}
	fmt.Fprintf(out, "%d of %d matched lines selected\n", len(selection.Records), len(matched))
	if selection.UnsafeBulk {
		fmt.Fprintf(out, "warning: more than %d lines matched; use --select before notifying\n", a.dispatcher.BulkThreshold())
	}

	if searchNotify == "" {
		return nil
	}
	report, err := a.dispatcher.Send(ctx, dispatch.Request{
		Matched:  matched,
		Selected: selected,
		Template: searchNotify,
		Operator: "cli",
	})
	if err != nil {
		return err
	}
	for _, outcome := range report.Outcomes {
		switch {
		case !outcome.Sent:
			fmt.Fprintf(out, "FAILED  %s: %s\n", outcome.Key, outcome.Error)
		case outcome.LogError != "":
			fmt.Fprintf(out, "SENT    %s (audit log not written: %s)\n", outcome.Key, outcome.LogError)
		default:
			fmt.Fprintf(out, "SENT    %s -> %s\n", outcome.Key, outcome.Recipient)
		}
	}
	fmt.Fprintf(out, "batch %s: %d sent, %d failed\n", report.BatchID, report.Sent, report.Failed)
	return nil
}

// parseSelection reads ORDER/SKU pairs. The order number may itself contain slashes, so the
// last slash separates the SKU.
func parseSelection(values []string) ([]domain.RecordRef, error) {
	refs := make([]domain.RecordRef, 0, len(values))
	for _, v := range values {
		i := strings.LastIndex(v, "/")
		if i <= 0 || i == len(v)-1 {
			return nil, errors.New("invalid --select value " + v + ", want ORDER/SKU")
		}
		refs = append(refs, domain.RecordRef{Key: domain.RecordKey{OrderNumber: v[:i], SKU: v[i+1:]}})
	}
	return refs, nil
}
