package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crashlens/crashlens/internal/batch"
	"github.com/crashlens/crashlens/internal/classifier"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		mode    string
		dir     string
		outPath string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Classify a directory of crash logs",
		Example: `  crashlens batch --dir ./crashes --mode hybrid --out results.json
  crashlens batch --mode rule`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := classifier.ParseStrategy(mode)
			if err != nil {
				return err
			}

			var items []batch.Item
			if dir != "" {
				items, err = batch.ScanDir(dir, a.cfg.Batch.MaxLines)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					return fmt.Errorf("no crash logs found under %s", dir)
				}
			} else {
				for i, log := range demoLogs {
					items = append(items, batch.Item{
						Name:   fmt.Sprintf("demo-%d", i+1),
						Report: log,
					})
				}
			}

			engine, err := a.buildClassifier(cmd.Context(), strategy)
			if err != nil {
				return err
			}

			if workers == 0 {
				workers = a.cfg.Batch.Workers
			}
			runner := batch.NewRunner(engine, strategy, workers)
			results := runner.Run(cmd.Context(), items)

			if outPath == "" {
				outPath = filepath.Join(a.cfg.Batch.OutputDir, "batch_results.json")
			}
			if err := batch.WriteResults(outPath, results); err != nil {
				return err
			}

			succeeded := 0
			for _, r := range results {
				if r.Error == "" {
					succeeded++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "classified %d/%d reports, results in %s\n",
				succeeded, len(results), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "classification strategy: direct, rag, rule, or hybrid")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of crash logs (default: built-in demo logs)")
	cmd.Flags().StringVar(&outPath, "out", "", "output JSON path (default: batch_results.json)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent classifications (default from config)")

	return cmd
}
