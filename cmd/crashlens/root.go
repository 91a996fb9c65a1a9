package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/internal/knowledge"
	"github.com/crashlens/crashlens/internal/llm"
	"github.com/crashlens/crashlens/internal/retrieval"
	"github.com/crashlens/crashlens/pkg/config"
	"github.com/crashlens/crashlens/pkg/logger"
)

type app struct {
	cfg     *config.Config
	catalog *knowledge.Catalog
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "crashlens",
		Short:         "Classify JVM/IDE crash logs against a diagnostic rule catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg

			if err := logger.Init(cfg.Logging.Level, "console", cfg.Logging.OutputPath); err != nil {
				return err
			}

			catalog, err := knowledge.Load(cfg.Knowledge.Path)
			if err != nil {
				return fmt.Errorf("failed to load rule catalog: %w", err)
			}
			a.catalog = catalog
			return nil
		},
	}

	root.AddCommand(newClassifyCmd(a))
	root.AddCommand(newBatchCmd(a))
	root.AddCommand(newRulesCmd(a))
	root.AddCommand(newModelsCmd(a))

	return root
}

// buildClassifier assembles the strategy stack. The retrieval index is
// built only when the selected mode can reach the RAG path, so
// rule-only and direct runs never touch the embedding backend.
func (a *app) buildClassifier(ctx context.Context, strategy classifier.Strategy) (*classifier.Classifier, error) {
	llmClient := llm.NewClient(a.cfg.LLM)

	index := &retrieval.Index{}
	if strategy == classifier.StrategyRAG {
		built, err := retrieval.Build(ctx, a.catalog, llmClient, a.cfg.Retrieval.BuildWorkers)
		if err != nil {
			return nil, err
		}
		index = built
	}

	return classifier.New(a.catalog, index, llmClient, llmClient,
		classifier.WithTopK(a.cfg.Retrieval.TopK),
	), nil
}
