package batch

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/provider"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(catalog.NewDocument([]wotrtl.Entry{
		{Key: "g1", Text: "Hello"},
		{Key: "g2", Text: "World"},
		{Key: "g3", Text: "Sword"},
		{Key: "g4", Text: "Shield"},
		{Key: "g5", Text: "Potion"},
		{Key: "g6", Text: ""},
	}))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxLines = 2
	opts.BatchBudgetTokens = 0
	opts.PollInterval = time.Millisecond
	opts.Retry = wotrtl.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	opts.RequestsPerMinute = -1
	opts.RunID = "test-run"
	return opts
}

// preparedWorkspace returns an orchestrator over a freshly prepared
// workspace: one batch of three requests (rows 1-2, 3-4, 5).
func preparedWorkspace(t *testing.T, backend Backend, mutate ...func(*Options)) *Orchestrator {
	t.Helper()
	opts := testOptions()
	for _, m := range mutate {
		m(&opts)
	}
	o := New(t.TempDir(), backend, opts)
	if _, err := o.Prepare(testCatalog()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return o
}

func mustState(t *testing.T, o *Orchestrator, n int) *State {
	t.Helper()
	st, err := o.ws.LoadState(n)
	if err != nil {
		t.Fatalf("LoadState(%d): %v", n, err)
	}
	return st
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func nonBlankLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func customIDs(t *testing.T, path string) []string {
	t.Helper()
	var ids []string
	for _, l := range nonBlankLines(readFile(t, path)) {
		req, err := provider.ParseBatchLine([]byte(l))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, req.CustomID)
	}
	return ids
}
