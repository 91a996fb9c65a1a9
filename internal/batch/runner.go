// Package batch classifies many reports with bounded concurrency while
// keeping per-item outcomes independent: one report failing never takes
// down the run.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/pkg/logger"
)

// Item is one report queued for classification.
type Item struct {
	// Name identifies the report in output, typically the file path.
	Name   string
	Report string
}

// Result is the recorded outcome for one item. Verdict is nil exactly
// when Error is non-empty.
type Result struct {
	Index     int                 `json:"index"`
	Source    string              `json:"source"`
	Verdict   *classifier.Verdict `json:"verdict,omitempty"`
	Strategy  string              `json:"strategy,omitempty"`
	Escalated bool                `json:"escalated,omitempty"`
	Error     string              `json:"error,omitempty"`
	LatencyMS int64               `json:"latency_ms"`
}

type Runner struct {
	classifier *classifier.Classifier
	strategy   classifier.Strategy
	workers    int
}

func NewRunner(c *classifier.Classifier, strategy classifier.Strategy, workers int) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		classifier: c,
		strategy:   strategy,
		workers:    workers,
	}
}

// Run classifies all items and returns results in input order,
// regardless of completion order. Cancelling ctx stops launching new
// work; items already in flight finish or fail on their own.
func (r *Runner) Run(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for i := range items {
		if ctx.Err() != nil {
			for j := i; j < len(items); j++ {
				results[j] = Result{
					Index:  j,
					Source: items[j].Name,
					Error:  fmt.Sprintf("cancelled before start: %v", ctx.Err()),
				}
			}
			break
		}

		i := i
		g.Go(func() error {
			results[i] = r.runOne(ctx, i, items[i])
			return nil
		})
	}

	g.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, index int, item Item) Result {
	start := time.Now()

	outcome, err := r.classifier.Classify(ctx, item.Report, r.strategy)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		logger.Warn("Batch item failed",
			zap.Int("index", index),
			zap.String("source", item.Name),
			zap.Error(err),
		)
		return Result{
			Index:     index,
			Source:    item.Name,
			Error:     err.Error(),
			LatencyMS: latency,
		}
	}

	return Result{
		Index:     index,
		Source:    item.Name,
		Verdict:   &outcome.Verdict,
		Strategy:  string(outcome.Strategy),
		Escalated: outcome.Escalated,
		LatencyMS: latency,
	}
}

// WriteResults persists results as an ordered JSON array.
func WriteResults(path string, results []Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write batch results: %w", err)
	}

	logger.Info("Batch results written",
		zap.String("path", path),
		zap.Int("items", len(results)),
	)
	return nil
}
