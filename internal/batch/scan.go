package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/crashlens/crashlens/pkg/logger"
)

// ScanDir collects crash logs under dir (non-recursive), sorted by file
// name for a stable batch order. Files larger than maxLines lines are
// truncated; the crash header and the faulting frames sit at the top of
// hs_err dumps, so the head is the part worth keeping.
func ScanDir(dir string, maxLines int) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	var items []Item
	for _, entry := range entries {
		if entry.IsDir() || !isCrashLog(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable crash log",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		items = append(items, Item{
			Name:   path,
			Report: TruncateLines(string(data), maxLines),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	logger.Info("Crash log directory scanned",
		zap.String("dir", dir),
		zap.Int("files", len(items)),
	)
	return items, nil
}

func isCrashLog(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".txt")
}

// TruncateLines caps text to its first maxLines lines. maxLines <= 0
// means no truncation.
func TruncateLines(text string, maxLines int) string {
	if maxLines <= 0 {
		return text
	}

	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			count++
			if count == maxLines {
				return text[:i]
			}
		}
	}
	return text
}
