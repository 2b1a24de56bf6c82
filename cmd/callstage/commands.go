package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"service-call-analyzer/internal/dataset"
	"service-call-analyzer/internal/report"
	"service-call-analyzer/internal/store"
)

// Batch command flags.
var (
	batchOutDir  string
	batchSummary string
)

func newTranscribeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio>",
		Short: "Transcribe a recording and write the tagged call record",
		Long: `Transcribe a recording and write the tagged call record.

The audio argument is either an http(s) URL the transcription service can
fetch or a local file, which is uploaded to the service first. Utterances,
stage segments and the analysis date are replaced; the compliance checklist
is only seeded when the record has none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), rt.app.Config.TranscribeTimeout)
			defer cancel()
			out, err := rt.app.Analyzer.AnalyzeAudio(ctx, args[0], rt.app.Store)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newTagCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tag",
		Short: "Re-tag the utterances already stored in the call record",
		Long: `Re-tag the utterances already stored in the call record.

Use this after changing STAGE_RULES_PATH or MAX_GAP_SECONDS. Reviewer scores
in the compliance checklist are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rt.app.Analyzer.Retag(cmd.Context(), rt.app.Store)
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newSummaryCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the call summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := rt.app.Store.Load()
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd.OutOrStdout(), report.New(rec).Summary())
		},
	}
}

func newExportCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Export the compliance checklist and segments to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := rt.app.Store.Load()
			if err != nil {
				return friendly(err)
			}
			if err := dataset.ExportRecord(args[0], rec, rt.app.Log.Component("export")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}

func newBatchCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx>",
		Short: "Analyze every call listed in a manifest workbook",
		Long: `Analyze every call listed in a manifest workbook.

The first sheet needs an audio column (audio, recording, url, link or file).
An id column and a call type column are picked up when present. Each call is
written to its own record under --out-dir and a summary workbook lists the
outcome of every row.

Examples:
  callstage batch calls.xlsx
  callstage batch calls.xlsx --out-dir out/ --summary out/summary.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := dataset.LoadManifest(args[0])
			if err != nil {
				return err
			}
			rows := rt.app.Analyzer.Batch(cmd.Context(), entries, batchOutDir, rt.app.Config.TranscribeTimeout)

			summary := batchSummary
			if summary == "" {
				summary = filepath.Join(batchOutDir, "summary.xlsx")
			}
			if err := dataset.ExportBatch(summary, rows); err != nil {
				return err
			}

			failed := 0
			for _, r := range rows {
				if r.Error != "" {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d calls, %d failed, summary in %s\n", len(rows), failed, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&batchOutDir, "out-dir", "out", "Directory for per-call records")
	cmd.Flags().StringVar(&batchSummary, "summary", "", "Summary workbook path (default <out-dir>/summary.xlsx)")
	return cmd
}

func newRulesCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the stage rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTAGE\tPATTERNS")
			for i, r := range rt.app.Classifier.Rules() {
				pats := make([]string, 0, len(r.Patterns))
				for _, p := range r.Patterns {
					pats = append(pats, strings.TrimPrefix(p.String(), "(?i)"))
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.Stage, strings.Join(pats, ", "))
			}
			return tw.Flush()
		},
	}
}

func friendly(err error) error {
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return fmt.Errorf("no call record yet, run 'callstage transcribe' first: %w", err)
	case errors.Is(err, store.ErrMalformedRecord):
		return fmt.Errorf("call record is not valid JSON: %w", err)
	}
	return err
}
