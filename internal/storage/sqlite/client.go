package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/crashlens/crashlens/internal/storage/models"
	"github.com/crashlens/crashlens/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS classification_history (
		id TEXT PRIMARY KEY,
		report_excerpt TEXT NOT NULL,
		report_hash TEXT NOT NULL,
		strategy TEXT NOT NULL,
		escalated INTEGER NOT NULL DEFAULT 0,
		root_cause TEXT NOT NULL,
		confidence TEXT NOT NULL,
		unknown_reason TEXT,
		key_info TEXT,
		matched_rule_id TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_created ON classification_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_history_hash ON classification_history(report_hash);
	CREATE INDEX IF NOT EXISTS idx_history_root_cause ON classification_history(root_cause);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (c *Client) InsertClassification(record *models.ClassificationRecord) error {
	keyInfo, err := json.Marshal(record.KeyInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal key_info: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT INTO classification_history
		(id, report_excerpt, report_hash, strategy, escalated, root_cause,
		 confidence, unknown_reason, key_info, matched_rule_id, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ReportExcerpt,
		record.ReportHash,
		record.Strategy,
		boolToInt(record.Escalated),
		record.RootCause,
		record.Confidence,
		record.UnknownReason,
		string(keyInfo),
		record.MatchedRuleID,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert classification record: %w", err)
	}
	return nil
}

func (c *Client) ListClassifications(limit int) ([]models.ClassificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(`
		SELECT id, report_excerpt, report_hash, strategy, escalated, root_cause,
		       confidence, unknown_reason, key_info, matched_rule_id, latency_ms, created_at
		FROM classification_history
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification history: %w", err)
	}
	defer rows.Close()

	var records []models.ClassificationRecord
	for rows.Next() {
		var (
			record    models.ClassificationRecord
			escalated int
			keyInfo   sql.NullString
			ruleID    sql.NullString
			reason    sql.NullString
			createdAt int64
		)
		err := rows.Scan(
			&record.ID,
			&record.ReportExcerpt,
			&record.ReportHash,
			&record.Strategy,
			&escalated,
			&record.RootCause,
			&record.Confidence,
			&reason,
			&keyInfo,
			&ruleID,
			&record.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification record: %w", err)
		}

		record.Escalated = escalated != 0
		record.UnknownReason = reason.String
		record.MatchedRuleID = ruleID.String
		record.CreatedAt = time.Unix(createdAt, 0)
		if keyInfo.Valid && keyInfo.String != "" {
			if err := json.Unmarshal([]byte(keyInfo.String), &record.KeyInfo); err != nil {
				record.KeyInfo = nil
			}
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (c *Client) CountByRootCause() (map[string]int, error) {
	rows, err := c.db.Query(`
		SELECT root_cause, COUNT(*) FROM classification_history GROUP BY root_cause`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by root cause: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cause string
		var n int
		if err := rows.Scan(&cause, &n); err != nil {
			return nil, fmt.Errorf("failed to scan root cause count: %w", err)
		}
		counts[cause] = n
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
