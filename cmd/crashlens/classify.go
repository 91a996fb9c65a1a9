package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crashlens/crashlens/internal/batch"
	"github.com/crashlens/crashlens/internal/classifier"
)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		mode     string
		logText  string
		filePath string
		stream   bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single crash log",
		Example: `  crashlens classify --mode rule --log "NullPointerException: backBuffers[i] is null"
  crashlens classify --mode hybrid --file /path/to/hs_err_pid1234.log
  crashlens classify --mode direct --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := classifier.ParseStrategy(mode)
			if err != nil {
				return err
			}

			report, err := resolveReport(logText, filePath, a.cfg.Batch.MaxLines)
			if err != nil {
				return err
			}

			engine, err := a.buildClassifier(cmd.Context(), strategy)
			if err != nil {
				return err
			}

			var outcome *classifier.Outcome
			if stream {
				outcome, err = engine.ClassifyStream(cmd.Context(), report, strategy, func(chunk string) {
					fmt.Print(chunk)
				})
				fmt.Println()
			} else {
				outcome, err = engine.Classify(cmd.Context(), report, strategy)
			}
			if err != nil {
				return err
			}

			return printOutcome(cmd, outcome)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "classification strategy: direct, rag, rule, or hybrid")
	cmd.Flags().StringVar(&logText, "log", "", "crash log text to classify")
	cmd.Flags().StringVar(&filePath, "file", "", "read the crash log from a file (hs_err_pid*.log)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream generation output as it arrives")

	return cmd
}

func resolveReport(logText, filePath string, maxLines int) (string, error) {
	if logText != "" {
		return logText, nil
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read crash log: %w", err)
		}
		return batch.TruncateLines(string(data), maxLines), nil
	}
	// Neither given: fall back to the physical-OOM demo log.
	return demoLogs[2], nil
}

func printOutcome(cmd *cobra.Command, outcome *classifier.Outcome) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "strategy:  %s", outcome.Strategy)
	if outcome.Escalated {
		fmt.Fprint(out, " (escalated to generation backend)")
	}
	fmt.Fprintln(out)

	if outcome.Match != nil {
		fmt.Fprintf(out, "rule:      %s (%d/%d keywords)\n",
			outcome.Match.Rule.ID, outcome.Match.MatchedCount, outcome.Match.TotalKeywords)
	}
	for _, c := range outcome.Retrieved {
		fmt.Fprintf(out, "candidate: %-24s %.4f\n", c.Rule.ID, c.Score)
	}

	verdict, err := json.MarshalIndent(outcome.Verdict, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.TrimSpace(string(verdict)))
	return nil
}
