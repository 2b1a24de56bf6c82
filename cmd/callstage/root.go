package main

import (
	"encoding/json"
	"io"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"service-call-analyzer/internal/app"
	"service-call-analyzer/internal/config"
	"service-call-analyzer/internal/logger"
)

// Global flags.
var (
	recordPath string
	envFile    string
	verbose    bool
)

// runtime holds the wired analyzer for the duration of one command.
type runtime struct {
	app *app.App
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "callstage",
		Short: "Tag service-call transcripts by stage and seed the compliance checklist",
		Long: `callstage transcribes service calls, tags every utterance with a call stage,
merges adjacent utterances into stage segments and seeds the compliance
checklist with evidence quotes. Results are written to a JSON call record.

Configuration comes from the environment (and an optional .env file):
  ASSEMBLYAI_API_KEY, RECORD_PATH, STAGE_RULES_PATH, MAX_GAP_SECONDS, ...

Examples:
  callstage transcribe recordings/call-0142.m4a
  callstage tag --record data/call.json
  callstage summary
  callstage export call.xlsx
  callstage batch manifest.xlsx --out-dir out/`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
			} else {
				_ = godotenv.Load()
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if recordPath != "" {
				cfg.RecordPath = recordPath
			}
			log := logger.NewWithOutput(cmd.ErrOrStderr())
			if !verbose {
				log.Logger.SetLevel(logrus.WarnLevel)
			}
			a, err := app.Build(cfg, log)
			if err != nil {
				return err
			}
			rt.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.app == nil {
				return nil
			}
			return rt.app.Close()
		},
	}

	root.PersistentFlags().StringVar(&recordPath, "record", "", "Call record path (overrides RECORD_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of .env")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured LOG_LEVEL instead of warnings only")

	root.AddCommand(
		newTranscribeCommand(rt),
		newTagCommand(rt),
		newSummaryCommand(rt),
		newExportCommand(rt),
		newBatchCommand(rt),
		newRulesCommand(rt),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
