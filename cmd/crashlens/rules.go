package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crashlens/crashlens/internal/llm"
)

func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the loaded diagnostic rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, rule := range a.catalog.Rules() {
				fmt.Fprintf(out, "%2d. %-22s %-14s %s\n", i+1, rule.ID, rule.Category, rule.Name)
				fmt.Fprintf(out, "    keywords: %s\n", strings.Join(rule.Keywords, ", "))
				if len(rule.NegativeKeywords) > 0 {
					fmt.Fprintf(out, "    excludes: %s\n", strings.Join(rule.NegativeKeywords, ", "))
				}
			}
			return nil
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the generation backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := llm.NewClient(a.cfg.LLM)
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range models {
				marker := ""
				if strings.HasPrefix(m, a.cfg.LLM.Model) {
					marker = "  (default)"
				}
				fmt.Fprintf(out, "  %s%s\n", m, marker)
			}
			return nil
		},
	}
}
