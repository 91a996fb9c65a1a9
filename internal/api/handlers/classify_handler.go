package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crashlens/crashlens/internal/cache/redis"
	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/internal/metrics"
	"github.com/crashlens/crashlens/internal/retrieval"
	"github.com/crashlens/crashlens/internal/storage/models"
	"github.com/crashlens/crashlens/internal/storage/sqlite"
	"github.com/crashlens/crashlens/pkg/logger"
	"github.com/crashlens/crashlens/pkg/utils"
)

const maxExcerptLen = 200

type ClassifyHandler struct {
	classifier *classifier.Classifier
	db         *sqlite.Client
	cache      *redis.Client
	defaultStr classifier.Strategy
}

type ClassifyRequest struct {
	Report   string `json:"report"`
	Strategy string `json:"strategy"`
}

type CandidateView struct {
	RuleID string  `json:"rule_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

type ClassifyResponse struct {
	ID        string             `json:"id"`
	Verdict   classifier.Verdict `json:"verdict"`
	Strategy  string             `json:"strategy"`
	Escalated bool               `json:"escalated"`
	Retrieved []CandidateView    `json:"retrieved,omitempty"`
	Cached    bool               `json:"cached"`
	LatencyMS int64              `json:"latency_ms"`
}

// NewClassifyHandler wires the classify endpoint. cache may be nil.
func NewClassifyHandler(c *classifier.Classifier, db *sqlite.Client, cache *redis.Client, defaultStrategy classifier.Strategy) *ClassifyHandler {
	return &ClassifyHandler{
		classifier: c,
		db:         db,
		cache:      cache,
		defaultStr: defaultStrategy,
	}
}

func (h *ClassifyHandler) HandleClassify(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Report == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "report is required",
		})
	}

	strategy := h.defaultStr
	if req.Strategy != "" {
		parsed, err := classifier.ParseStrategy(req.Strategy)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		strategy = parsed
	}

	start := time.Now()
	reportHash := utils.HashText(req.Report)

	if h.cache != nil {
		verdict, hit, err := h.cache.GetVerdict(c.Context(), string(strategy), reportHash)
		if err != nil {
			logger.Warn("Verdict cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.Inc()
			return c.JSON(ClassifyResponse{
				ID:        uuid.New().String(),
				Verdict:   verdict,
				Strategy:  string(strategy),
				Cached:    true,
				LatencyMS: time.Since(start).Milliseconds(),
			})
		}
		metrics.CacheMisses.Inc()
	}

	outcome, err := h.classifier.Classify(c.Context(), req.Report, strategy)
	latency := time.Since(start)

	metrics.ClassificationDuration.WithLabelValues(string(strategy)).Observe(latency.Seconds())
	if err != nil {
		metrics.ClassificationTotal.WithLabelValues(string(strategy), "error").Inc()
		logger.Error("Classification failed",
			zap.String("strategy", string(strategy)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	metrics.ClassificationTotal.WithLabelValues(string(strategy), "success").Inc()
	metrics.VerdictConfidence.WithLabelValues(string(outcome.Verdict.Confidence)).Inc()
	if outcome.Match != nil {
		metrics.RuleEngineMatches.WithLabelValues(string(outcome.Match.Confidence)).Inc()
	} else if strategy == classifier.StrategyRule || strategy == classifier.StrategyHybrid {
		metrics.RuleEngineMatches.WithLabelValues("none").Inc()
	}
	if outcome.Escalated {
		metrics.HybridEscalations.Inc()
	}

	id := uuid.New().String()
	h.persist(id, req.Report, reportHash, outcome, latency.Milliseconds())

	if h.cache != nil {
		if err := h.cache.SetVerdict(c.Context(), string(strategy), reportHash, outcome.Verdict); err != nil {
			logger.Warn("Failed to cache verdict", zap.Error(err))
		}
	}

	return c.JSON(ClassifyResponse{
		ID:        id,
		Verdict:   outcome.Verdict,
		Strategy:  string(outcome.Strategy),
		Escalated: outcome.Escalated,
		Retrieved: candidateViews(outcome.Retrieved),
		LatencyMS: latency.Milliseconds(),
	})
}

func (h *ClassifyHandler) persist(id, report, reportHash string, outcome *classifier.Outcome, latencyMS int64) {
	if h.db == nil {
		return
	}

	record := &models.ClassificationRecord{
		ID:            id,
		ReportExcerpt: excerpt(report),
		ReportHash:    reportHash,
		Strategy:      string(outcome.Strategy),
		Escalated:     outcome.Escalated,
		RootCause:     outcome.Verdict.RootCause,
		Confidence:    string(outcome.Verdict.Confidence),
		UnknownReason: outcome.Verdict.UnknownReason,
		KeyInfo:       outcome.Verdict.KeyInfo,
		LatencyMS:     latencyMS,
		CreatedAt:     time.Now(),
	}
	if outcome.Match != nil {
		record.MatchedRuleID = outcome.Match.Rule.ID
	}

	if err := h.db.InsertClassification(record); err != nil {
		logger.Warn("Failed to persist classification record", zap.Error(err))
	}
}

func candidateViews(candidates []retrieval.Candidate) []CandidateView {
	if len(candidates) == 0 {
		return nil
	}
	views := make([]CandidateView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, CandidateView{
			RuleID: c.Rule.ID,
			Name:   c.Rule.Name,
			Score:  c.Score,
		})
	}
	return views
}

func excerpt(report string) string {
	if len(report) <= maxExcerptLen {
		return report
	}
	return report[:maxExcerptLen] + "..."
}
