package rules

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crashlens/crashlens/internal/knowledge"
)

func builtin(t *testing.T) *knowledge.Catalog {
	t.Helper()
	catalog, err := knowledge.BuiltinCatalog()
	if err != nil {
		t.Fatalf("BuiltinCatalog() error: %v", err)
	}
	return catalog
}

func mustCatalog(t *testing.T, rules ...knowledge.Rule) *knowledge.Catalog {
	t.Helper()
	catalog, err := knowledge.NewCatalog(rules)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	return catalog
}

func TestClassify_WindowsVirtualMemory(t *testing.T) {
	report := `# Native memory allocation (mmap) failed to map 2097152 bytes for committing reserved memory.
# Out of Memory Error (os_windows.cpp:3536), pid=2680, tid=9240
Native memory allocation (malloc) failed to allocate 1407664 bytes. Error detail: Chunk::new
Out of Memory Error (arena.cpp:191)
G1 virtual space exhausted`

	match := Classify(report, builtin(t))
	if match == nil {
		t.Fatal("Classify() = nil, want Windows virtual memory match")
	}
	if match.Rule.ID != knowledge.RuleWinVirtualOOM {
		t.Fatalf("matched %s, want %s", match.Rule.ID, knowledge.RuleWinVirtualOOM)
	}
	if match.Rule.Category != "Out of memory" {
		t.Errorf("category = %q", match.Rule.Category)
	}
	// 7 of 9 keywords present: failed to map, failed to allocate,
	// Native memory allocation, Out of Memory Error, os_windows.cpp,
	// arena.cpp, Chunk::new, G1 virtual space -> >= 0.7 of the set.
	if match.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s (matched %d/%d), want high",
			match.Confidence, match.MatchedCount, match.TotalKeywords)
	}
}

func TestClassify_NegativeKeywordRedirectsToPhysicalOOM(t *testing.T) {
	// Same allocation failures, but the report carries the
	// "Possible reasons" section: the virtual-memory rule is excluded
	// by its negative keywords and the physical-memory rule takes over.
	report := `# Native memory allocation (malloc) failed to allocate 1330048 bytes. Error detail: Chunk::new
# Native memory allocation (mmap) failed to map reserved memory.
# Possible reasons:
#   The system is out of physical RAM or swap space
#   This process is running with CompressedOops enabled`

	match := Classify(report, builtin(t))
	if match == nil {
		t.Fatal("Classify() = nil, want physical memory match")
	}
	if match.Rule.ID != knowledge.RulePhysicalOOM {
		t.Fatalf("matched %s, want %s", match.Rule.ID, knowledge.RulePhysicalOOM)
	}
	if match.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s (matched %d/%d), want high",
			match.Confidence, match.MatchedCount, match.TotalKeywords)
	}
}

func TestClassify_NegativeKeywordAlwaysExcludes(t *testing.T) {
	// Every positive keyword of the virtual-memory rule plus one
	// negative keyword: the rule must never match, regardless of the
	// positive count.
	virtual := builtin(t).Find(knowledge.RuleWinVirtualOOM)
	report := strings.Join(virtual.Keywords, "\n") + "\nPossible reasons"

	match := Classify(report, builtin(t))
	if match != nil && match.Rule.ID == knowledge.RuleWinVirtualOOM {
		t.Errorf("rule %s matched despite negative keyword", knowledge.RuleWinVirtualOOM)
	}
}

func TestClassify_ThresholdFloor(t *testing.T) {
	catalog := mustCatalog(t, knowledge.Rule{
		ID:       "FOUR_KEYWORDS",
		Category: "test",
		Keywords: []string{"alpha marker", "beta marker", "gamma marker", "delta marker"},
	})

	// One of four keywords: threshold max(2, 2) = 2 not met.
	if match := Classify("log with alpha marker only", catalog); match != nil {
		t.Errorf("matched with 1/4 keywords, want no match")
	}

	if match := Classify("alpha marker and beta marker", catalog); match == nil {
		t.Error("no match with 2/4 keywords, want match at threshold")
	}
}

func TestClassify_TwoKeywordRuleNeedsBoth(t *testing.T) {
	catalog := mustCatalog(t, knowledge.Rule{
		ID:       "TWO_KEYWORDS",
		Category: "test",
		Keywords: []string{"first marker", "second marker"},
	})

	// The max(2, ...) floor means a 2-keyword rule requires both; a
	// single hit can never qualify.
	if match := Classify("only the first marker here", catalog); match != nil {
		t.Error("matched with 1/2 keywords")
	}

	match := Classify("first marker then second marker", catalog)
	if match == nil {
		t.Fatal("no match with 2/2 keywords")
	}
	if match.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high for a full match", match.Confidence)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	catalog := mustCatalog(t, knowledge.Rule{
		ID:       "CASE",
		Category: "test",
		Keywords: []string{"EXCEPTION_ACCESS_VIOLATION", "jvm.dll"},
	})

	if match := Classify("exception_access_violation in JVM.DLL", catalog); match == nil {
		t.Error("keyword matching must be case-insensitive")
	}
}

func TestClassify_GuardGates(t *testing.T) {
	rule := knowledge.Rule{
		ID:       "GUARDED",
		Category: "test",
		Keywords: []string{"needle one", "needle two"},
		Guard:    knowledge.RequireMarker("magic marker"),
	}
	catalog := mustCatalog(t, rule)

	if match := Classify("needle one, needle two", catalog); match != nil {
		t.Error("guarded rule matched without its marker")
	}
	if match := Classify("needle one, needle two, Magic Marker", catalog); match == nil {
		t.Error("guarded rule did not match with marker present")
	}
}

func TestClassify_ConfidenceMonotonic(t *testing.T) {
	keywords := make([]string, 10)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword-%02d", i)
	}
	catalog := mustCatalog(t, knowledge.Rule{
		ID:       "MONO",
		Category: "test",
		Keywords: keywords,
	})

	rank := func(c Confidence) int {
		switch c {
		case ConfidenceHigh:
			return 2
		case ConfidenceMedium:
			return 1
		default:
			return 0
		}
	}

	prev := -1
	for n := 5; n <= 10; n++ {
		report := strings.Join(keywords[:n], " ")
		match := Classify(report, catalog)
		if match == nil {
			t.Fatalf("no match with %d/10 keywords", n)
		}
		if r := rank(match.Confidence); r < prev {
			t.Errorf("confidence decreased from rank %d to %d at %d keywords", prev, r, n)
		} else {
			prev = r
		}
	}
}

// The engine returns the first qualifying rule in catalog order rather
// than the globally best-scoring one: catalog order is a priority list.
func TestClassify_FirstMatchWinsInCatalogOrder(t *testing.T) {
	catalog := mustCatalog(t,
		knowledge.Rule{
			ID:       "EARLIER_WEAKER",
			Category: "first",
			Keywords: []string{"shared one", "shared two", "never present", "also absent"},
		},
		knowledge.Rule{
			ID:       "LATER_STRONGER",
			Category: "second",
			Keywords: []string{"shared one", "shared two"},
		},
	)

	match := Classify("shared one shared two", catalog)
	if match == nil {
		t.Fatal("no match")
	}
	if match.Rule.ID != "EARLIER_WEAKER" {
		t.Errorf("matched %s, want EARLIER_WEAKER (first qualifying rule wins)", match.Rule.ID)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	report := `EXCEPTION_ACCESS_VIOLATION (0xc0000005)
Current thread: GCTaskThread "GC Thread#5"
C2 CompilerThread ConcurrentGCThread`

	first := Classify(report, builtin(t))
	for i := 0; i < 50; i++ {
		again := Classify(report, builtin(t))
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("Classify() not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestClassify_NoMatchIsNil(t *testing.T) {
	if match := Classify("completely unrelated application log line", builtin(t)); match != nil {
		t.Errorf("Classify() = %+v, want nil for an unrelated report", match)
	}
}

func TestClassify_MatchedKeywordsReported(t *testing.T) {
	report := `EXCEPTION_ACCESS_VIOLATION at pc=0x0
# C  [chrome_elf.dll+0x1b549]  java.lang.ProcessHandleImpl.getProcessPids0`

	match := Classify(report, builtin(t))
	if match == nil {
		t.Fatal("no match")
	}
	if match.Rule.ID != "CHROME_ELF_VIOLATION" {
		t.Fatalf("matched %s, want CHROME_ELF_VIOLATION", match.Rule.ID)
	}
	if match.MatchedCount != len(match.MatchedKeywords) {
		t.Errorf("MatchedCount %d != len(MatchedKeywords) %d", match.MatchedCount, len(match.MatchedKeywords))
	}
	if match.TotalKeywords != 4 {
		t.Errorf("TotalKeywords = %d, want 4", match.TotalKeywords)
	}
}
