package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/factstream/internal/config"
	"github.com/leonardotrapani/factstream/internal/knowledge"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the local knowledge base",
	}

	cmd.AddCommand(kbLoadCmd())
	cmd.AddCommand(kbFetchCmd())
	cmd.AddCommand(kbSearchCmd())

	return cmd
}

func openStore() (*config.Config, *knowledge.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := knowledge.OpenSQLite(cfg.Knowledge.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return cfg, store, nil
}

func kbLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file.json|file.yaml>...",
		Short: "Add documents from JSON or YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			total := 0
			for _, path := range args {
				n, err := knowledge.LoadFile(ctx, store, path)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents\n", path, n)
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d documents into %s\n", total, store.Path())
			return nil
		},
	}
}

func kbFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch fact-check articles into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			fetcher := knowledge.NewFetcher(cfg.ToFetcherConfig())
			n, err := fetcher.LoadURLs(ctx, store, args)
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d of %d urls\n", n, len(args))
			return err
		},
	}
}

func kbSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			query := strings.Join(args, " ")
			items, err := store.Search(ctx, query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, styleMuted.Render("no matches"))
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(out, "%s %s\n", styleHeader.Render(fmt.Sprintf("%.2f", it.RelevanceScore)),
					styleMuted.Render(it.Source.Name))
				fmt.Fprintf(out, "  %s\n", it.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "maximum results")
	return cmd
}
