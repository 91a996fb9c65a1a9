package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/pkg/logger"
)

// Client caches verdicts keyed by the SHA-256 of the report text.
// Classification of an unchanged catalog is deterministic for the rule
// path and stable enough for the generation path that re-serving a
// recent verdict for a byte-identical report is safe.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	logger.Info("Redis verdict cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func verdictKey(strategy, reportHash string) string {
	return fmt.Sprintf("verdict:%s:%s", strategy, reportHash)
}

func (c *Client) SetVerdict(ctx context.Context, strategy, reportHash string, verdict classifier.Verdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	if err := c.client.Set(ctx, verdictKey(strategy, reportHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache verdict: %w", err)
	}

	logger.Debug("Verdict cached", zap.String("report_hash", reportHash))
	return nil
}

func (c *Client) GetVerdict(ctx context.Context, strategy, reportHash string) (classifier.Verdict, bool, error) {
	data, err := c.client.Get(ctx, verdictKey(strategy, reportHash)).Bytes()
	if err == redis.Nil {
		return classifier.Verdict{}, false, nil
	}
	if err != nil {
		return classifier.Verdict{}, false, fmt.Errorf("failed to read verdict cache: %w", err)
	}

	var verdict classifier.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return classifier.Verdict{}, false, fmt.Errorf("failed to unmarshal cached verdict: %w", err)
	}

	logger.Debug("Verdict cache hit", zap.String("report_hash", reportHash))
	return verdict, true, nil
}

// Flush drops all cached verdicts, used when the rule catalog changes
// between runs.
func (c *Client) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "verdict:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}
	return nil
}
