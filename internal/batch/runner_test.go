package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/internal/knowledge"
	"github.com/crashlens/crashlens/internal/llm"
	"github.com/crashlens/crashlens/internal/retrieval"
)

// slowGenerator answers later for earlier items so completion order is
// the reverse of submission order.
type slowGenerator struct {
	calls  atomic.Int64
	failOn string
}

func (g *slowGenerator) Chat(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	g.calls.Add(1)
	report := messages[len(messages)-1].Content

	if g.failOn != "" && strings.Contains(report, g.failOn) {
		return "", errors.New("backend rejected the report")
	}

	for i := 0; i < 8; i++ {
		if strings.Contains(report, fmt.Sprintf("report-%d", i)) {
			time.Sleep(time.Duration(8-i) * 5 * time.Millisecond)
			return fmt.Sprintf(`{"root_cause":"cause-%d","key_info":[],"confidence":"low"}`, i), nil
		}
	}
	return `{"root_cause":"other","key_info":[],"confidence":"low"}`, nil
}

func (g *slowGenerator) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options, onChunk func(string)) (string, error) {
	return g.Chat(ctx, messages, opts)
}

func newTestClassifier(t *testing.T, gen classifier.Generator) *classifier.Classifier {
	t.Helper()
	catalog, err := knowledge.BuiltinCatalog()
	if err != nil {
		t.Fatal(err)
	}
	return classifier.New(catalog, &retrieval.Index{}, gen, nil)
}

func TestRun_PreservesInputOrder(t *testing.T) {
	gen := &slowGenerator{}
	runner := NewRunner(newTestClassifier(t, gen), classifier.StrategyDirect, 4)

	items := make([]Item, 8)
	for i := range items {
		items[i] = Item{Name: fmt.Sprintf("log-%d.txt", i), Report: fmt.Sprintf("crash report-%d", i)}
	}

	results := runner.Run(context.Background(), items)

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("results[%d].Index = %d", i, res.Index)
		}
		if res.Source != items[i].Name {
			t.Errorf("results[%d].Source = %q, want %q", i, res.Source, items[i].Name)
		}
		if res.Verdict == nil {
			t.Fatalf("results[%d] has no verdict: %s", i, res.Error)
		}
		if want := fmt.Sprintf("cause-%d", i); res.Verdict.RootCause != want {
			t.Errorf("results[%d].RootCause = %q, want %q", i, res.Verdict.RootCause, want)
		}
	}
}

func TestRun_ItemFailureIsIsolated(t *testing.T) {
	gen := &slowGenerator{failOn: "report-3"}
	runner := NewRunner(newTestClassifier(t, gen), classifier.StrategyDirect, 2)

	items := make([]Item, 6)
	for i := range items {
		items[i] = Item{Name: fmt.Sprintf("log-%d.txt", i), Report: fmt.Sprintf("crash report-%d", i)}
	}

	results := runner.Run(context.Background(), items)

	for i, res := range results {
		if i == 3 {
			if res.Error == "" {
				t.Error("failing item recorded no error")
			}
			if res.Verdict != nil {
				t.Error("failing item recorded a verdict")
			}
			continue
		}
		if res.Error != "" {
			t.Errorf("results[%d] failed: %s", i, res.Error)
		}
		if res.Verdict == nil {
			t.Errorf("results[%d] has no verdict", i)
		}
	}
}

func TestRun_CancelledContextStopsLaunching(t *testing.T) {
	gen := &slowGenerator{}
	runner := NewRunner(newTestClassifier(t, gen), classifier.StrategyDirect, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []Item{
		{Name: "a.log", Report: "report-0"},
		{Name: "b.log", Report: "report-1"},
	}
	results := runner.Run(ctx, items)

	if gen.calls.Load() != 0 {
		t.Errorf("cancelled run still made %d generation calls", gen.calls.Load())
	}
	for i, res := range results {
		if res.Error == "" {
			t.Errorf("results[%d] not marked cancelled", i)
		}
		if res.Source != items[i].Name {
			t.Errorf("results[%d].Source = %q", i, res.Source)
		}
	}
}

func TestRun_RuleOnlyNeedsNoBackend(t *testing.T) {
	gen := &slowGenerator{}
	runner := NewRunner(newTestClassifier(t, gen), classifier.StrategyRule, 3)

	results := runner.Run(context.Background(), []Item{
		{Name: "a.log", Report: "unrecognized crash"},
		{Name: "b.log", Report: "chrome_elf.dll EXCEPTION_ACCESS_VIOLATION"},
	})

	if gen.calls.Load() != 0 {
		t.Errorf("rule-only batch made %d generation calls", gen.calls.Load())
	}
	for i, res := range results {
		if res.Verdict == nil {
			t.Fatalf("results[%d] has no verdict: %s", i, res.Error)
		}
	}
}

func TestWriteResults_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch_results.json")

	verdict := &classifier.Verdict{RootCause: "Out of memory", KeyInfo: []string{"mmap failed"}, Confidence: "high"}
	in := []Result{
		{Index: 0, Source: "a.log", Verdict: verdict, Strategy: "hybrid", LatencyMS: 12},
		{Index: 1, Source: "b.log", Error: "backend unavailable", LatencyMS: 3},
	}

	if err := WriteResults(path, in); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []Result
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("written file is not valid JSON: %v", err)
	}
	if len(out) != 2 || out[0].Source != "a.log" || out[1].Error == "" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("b_crash.log", "second")
	writeFile("a_crash.txt", "first")
	writeFile("notes.md", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	items, err := ScanDir(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if filepath.Base(items[0].Name) != "a_crash.txt" || filepath.Base(items[1].Name) != "b_crash.log" {
		t.Errorf("items not sorted by name: %q, %q", items[0].Name, items[1].Name)
	}
	if items[0].Report != "first" {
		t.Errorf("items[0].Report = %q", items[0].Report)
	}
}

func TestTruncateLines(t *testing.T) {
	text := "l1\nl2\nl3\nl4"

	if got := TruncateLines(text, 2); got != "l1\nl2" {
		t.Errorf("TruncateLines(2) = %q", got)
	}
	if got := TruncateLines(text, 0); got != text {
		t.Errorf("TruncateLines(0) must not truncate, got %q", got)
	}
	if got := TruncateLines(text, 100); got != text {
		t.Errorf("TruncateLines(100) must not truncate, got %q", got)
	}
}
