package batch

import (
	"testing"

	"github.com/wotrcz/wotrtl"
)

func TestEstimateTokens(t *testing.T) {
	// ceil(3*0.35)=2, int(2*1.30)=2, +220
	if got := EstimateTokens("", "", "abc"); got != 222 {
		t.Errorf("EstimateTokens = %d, want 222", got)
	}
	// runes, not bytes
	if EstimateTokens("", "", "ččč") != EstimateTokens("", "", "abc") {
		t.Error("estimate should count runes")
	}
	if EstimateTokens("rules", "header", "abc") <= 222 {
		t.Error("system and header should count")
	}
}

func TestChunkRows(t *testing.T) {
	rows := []wotrtl.Row{
		{Idx: 1, Text: "aaaa"}, // "1\taaaa\n" = 7 runes
		{Idx: 2, Text: "bbbb"},
		{Idx: 3, Text: "cccccccccccccccccccc"},
		{Idx: 4, Text: "d"},
	}

	byLines := chunkRows(rows, 0, 3)
	if len(byLines) != 2 || len(byLines[0]) != 3 {
		t.Errorf("line limit: %v", byLines)
	}

	byChars := chunkRows(rows, 14, 0)
	if len(byChars) != 3 {
		t.Fatalf("char limit: got %d chunks", len(byChars))
	}
	if len(byChars[0]) != 2 || byChars[1][0].Idx != 3 || byChars[2][0].Idx != 4 {
		t.Errorf("unexpected chunks: %v", byChars)
	}
}

func TestGroupRequests(t *testing.T) {
	reqs := []request{
		{ID: "a", EstTokens: 400, Line: make([]byte, 9)},
		{ID: "b", EstTokens: 400, Line: make([]byte, 9)},
		{ID: "c", EstTokens: 400, Line: make([]byte, 9)},
	}

	if g := groupRequests(reqs, 0, 0); len(g) != 1 {
		t.Errorf("unlimited: %d groups", len(g))
	}
	if g := groupRequests(reqs, 800, 0); len(g) != 2 || len(g[0]) != 2 {
		t.Errorf("budget: %v", g)
	}
	if g := groupRequests(reqs, 0, 10); len(g) != 3 {
		t.Errorf("byte limit: %d groups", len(g))
	}
	if g := groupRequests(reqs[:1], 1, 1); len(g) != 1 {
		t.Error("oversized request should still form a batch")
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, parts int
		want     []int
	}{
		{5, 2, []int{3, 2}},
		{4, 2, []int{2, 2}},
		{2, 3, []int{1, 1}},
		{7, 3, []int{3, 2, 2}},
	}
	for _, tt := range tests {
		got := partition(tt.n, tt.parts)
		if len(got) != len(tt.want) {
			t.Errorf("partition(%d, %d) = %v, want %v", tt.n, tt.parts, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("partition(%d, %d) = %v, want %v", tt.n, tt.parts, got, tt.want)
			}
		}
	}
}
