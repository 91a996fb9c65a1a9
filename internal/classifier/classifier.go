// Package classifier composes the rule engine, retrieval index, and
// generation backend into the classification strategies and the hybrid
// escalation policy.
package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crashlens/crashlens/internal/knowledge"
	"github.com/crashlens/crashlens/internal/llm"
	"github.com/crashlens/crashlens/internal/retrieval"
	"github.com/crashlens/crashlens/internal/rules"
	"github.com/crashlens/crashlens/pkg/logger"
)

// Strategy selects how a report is classified.
type Strategy string

const (
	// StrategyDirect injects the whole catalog into the system context
	// and asks the generation backend in one call.
	StrategyDirect Strategy = "direct"
	// StrategyRAG narrows the catalog through the retrieval index
	// before the generation call.
	StrategyRAG Strategy = "rag"
	// StrategyRule runs only the keyword engine; no network.
	StrategyRule Strategy = "rule"
	// StrategyHybrid trusts a high-confidence rule match and escalates
	// to the generation backend otherwise.
	StrategyHybrid Strategy = "hybrid"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyDirect, StrategyRAG, StrategyRule, StrategyHybrid:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want direct, rag, rule, or hybrid)", s)
}

// Generator is the generation-backend boundary the strategies call.
type Generator interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error)
	ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options, onChunk func(chunk string)) (string, error)
}

// Outcome is a classification result plus the evidence of how it was
// reached: which strategy answered, whether the hybrid policy
// escalated, and the retrieved candidates when RAG ran.
type Outcome struct {
	Verdict   Verdict
	Strategy  Strategy
	Escalated bool
	Match     *rules.MatchResult
	Retrieved []retrieval.Candidate
}

type Classifier struct {
	catalog       *knowledge.Catalog
	index         *retrieval.Index
	gen           Generator
	embed         retrieval.Embedder
	topK          int
	escalateTo    Strategy
	knowledgeText string
}

type Option func(*Classifier)

// WithTopK sets how many candidates the RAG strategy retrieves.
func WithTopK(k int) Option {
	return func(c *Classifier) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithEscalation selects the strategy the hybrid policy escalates to,
// StrategyDirect or StrategyRAG.
func WithEscalation(s Strategy) Option {
	return func(c *Classifier) {
		if s == StrategyDirect || s == StrategyRAG {
			c.escalateTo = s
		}
	}
}

// New wires a classifier over an immutable catalog and a pre-built
// retrieval index. index, gen, and embed may be nil when the caller
// only uses the rule-only strategy. The catalog serialization for
// direct injection is rendered once here, not per request.
func New(catalog *knowledge.Catalog, index *retrieval.Index, gen Generator, embed retrieval.Embedder, opts ...Option) *Classifier {
	c := &Classifier{
		catalog:       catalog,
		index:         index,
		gen:           gen,
		embed:         embed,
		topK:          3,
		escalateTo:    StrategyDirect,
		knowledgeText: SystemKnowledgeText(catalog),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs one report through the selected strategy and blocks
// until the complete verdict is available.
func (c *Classifier) Classify(ctx context.Context, report string, strategy Strategy) (*Outcome, error) {
	return c.classify(ctx, report, strategy, nil)
}

// ClassifyStream behaves like Classify but delivers generation output
// incrementally through onChunk. Strategies that never call the
// generation backend (rule-only, hybrid resolved by the rule engine)
// produce no chunks.
func (c *Classifier) ClassifyStream(ctx context.Context, report string, strategy Strategy, onChunk func(chunk string)) (*Outcome, error) {
	return c.classify(ctx, report, strategy, onChunk)
}

func (c *Classifier) classify(ctx context.Context, report string, strategy Strategy, onChunk func(string)) (*Outcome, error) {
	switch strategy {
	case StrategyRule:
		return c.classifyRuleOnly(report), nil
	case StrategyDirect:
		return c.classifyDirect(ctx, report, onChunk)
	case StrategyRAG:
		return c.classifyRAG(ctx, report, onChunk)
	case StrategyHybrid:
		return c.classifyHybrid(ctx, report, onChunk)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

func (c *Classifier) classifyRuleOnly(report string) *Outcome {
	match := rules.Classify(report, c.catalog)

	if match != nil {
		logger.Debug("Rule engine matched",
			zap.String("rule_id", match.Rule.ID),
			zap.Int("matched", match.MatchedCount),
			zap.Int("total", match.TotalKeywords),
			zap.String("confidence", string(match.Confidence)),
		)
	}

	return &Outcome{
		Verdict:  VerdictFromMatch(match),
		Strategy: StrategyRule,
		Match:    match,
	}
}

func (c *Classifier) classifyDirect(ctx context.Context, report string, onChunk func(string)) (*Outcome, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: c.knowledgeText},
		{Role: llm.RoleUser, Content: userPrompt(report)},
	}

	raw, err := c.generate(ctx, messages, onChunk)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Verdict:  ParseVerdict(raw),
		Strategy: StrategyDirect,
	}, nil
}

func (c *Classifier) classifyRAG(ctx context.Context, report string, onChunk func(string)) (*Outcome, error) {
	candidates, err := c.index.Search(ctx, report, c.topK, c.embed)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(candidates) == 0 {
		// Empty index or k=0; fall back to the full catalog rather
		// than asking the model with no knowledge at all.
		logger.Warn("Retrieval returned no candidates, using full catalog context")
		outcome, err := c.classifyDirect(ctx, report, onChunk)
		if err != nil {
			return nil, err
		}
		outcome.Strategy = StrategyRAG
		return outcome, nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: retrievalContext(candidates)},
		{Role: llm.RoleUser, Content: userPrompt(report)},
	}

	raw, err := c.generate(ctx, messages, onChunk)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Verdict:   ParseVerdict(raw),
		Strategy:  StrategyRAG,
		Retrieved: candidates,
	}, nil
}

// classifyHybrid is the two-state escalation policy: trust the rule
// engine when it is highly confident, otherwise make exactly one
// generation call. There is no retry loop and no way back.
func (c *Classifier) classifyHybrid(ctx context.Context, report string, onChunk func(string)) (*Outcome, error) {
	match := rules.Classify(report, c.catalog)

	if match != nil && match.Confidence == rules.ConfidenceHigh {
		logger.Debug("Hybrid resolved by rule engine, skipping generation",
			zap.String("rule_id", match.Rule.ID),
		)
		return &Outcome{
			Verdict:  VerdictFromMatch(match),
			Strategy: StrategyHybrid,
			Match:    match,
		}, nil
	}

	var (
		outcome *Outcome
		err     error
	)
	if c.escalateTo == StrategyRAG {
		outcome, err = c.classifyRAG(ctx, report, onChunk)
	} else {
		outcome, err = c.classifyDirect(ctx, report, onChunk)
	}
	if err != nil {
		return nil, err
	}

	outcome.Strategy = StrategyHybrid
	outcome.Escalated = true
	outcome.Match = match
	return outcome, nil
}

func (c *Classifier) generate(ctx context.Context, messages []llm.Message, onChunk func(string)) (string, error) {
	opts := llm.Options{JSONMode: true}
	if onChunk != nil {
		return c.gen.ChatStream(ctx, messages, opts, onChunk)
	}
	return c.gen.Chat(ctx, messages, opts)
}
