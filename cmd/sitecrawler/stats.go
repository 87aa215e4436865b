package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print how many URLs and documents are stored",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	addDBFlags(cmd)
	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd, nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	urls, err := store.CountURLs(ctx)
	if err != nil {
		return err
	}
	docs, err := store.CountDocuments(ctx)
	if err != nil {
		return err
	}
	uncrawled, err := store.UncrawledURLs(ctx, 0)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "URLs:       %d (%d not crawled yet)\n", urls, len(uncrawled))
	fmt.Fprintf(e.out, "Documents:  %d\n", docs)
	return nil
}
