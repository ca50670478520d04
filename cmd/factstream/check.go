package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/factstream/internal/claims"
	"github.com/leonardotrapani/factstream/internal/factcheck"
	"github.com/leonardotrapani/factstream/internal/model"
)

func checkCmd() *cobra.Command {
	var claimContext string

	cmd := &cobra.Command{
		Use:   "check <claim>",
		Short: "Verify a single claim against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("claim text is empty")
			}

			ctx, cancel := signalContext()
			defer cancel()

			cfg, deps, closeFn, err := localEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			engine := factcheck.NewEngine(deps.Responder, deps.Searcher, cfg.ToFactCheckOptions())
			result := engine.CheckClaim(ctx, model.Claim{
				Text:         text,
				TranscriptID: "cli",
				Confidence:   1.0,
				SourceText:   text,
				Context:      claimContext,
				Timestamp:    time.Now(),
			})
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&claimContext, "context", "", "surrounding text for the claim")
	return cmd
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <text>",
		Short: "Detect and verify every claim in a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is empty")
			}

			ctx, cancel := signalContext()
			defer cancel()

			cfg, deps, closeFn, err := localEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			detector := claims.NewDetector(deps.Responder, cfg.LLM.Model, cfg.FactCheck.MinClaimConfidence)
			found := detector.Detect(ctx, model.TranscriptEvent{
				ID:         "cli",
				Text:       text,
				Confidence: 1.0,
				IsFinal:    true,
				Timestamp:  time.Now(),
			})
			if len(found) == 0 {
				fmt.Fprintln(out, styleMuted.Render("no factual claims found"))
				return nil
			}
			for _, c := range found {
				printClaim(out, c)
			}
			fmt.Fprintln(out)

			// results print as they finish
			engine := factcheck.NewEngine(deps.Responder, deps.Searcher, cfg.ToFactCheckOptions())
			engine.OnResult(resultPrinter(out))
			engine.CheckAll(ctx, found)
			return nil
		},
	}
}
