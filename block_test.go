package wotrtl

import "testing"

func TestSanitizeCell(t *testing.T) {
	in := "line1\nline2\tcol\r\nend"
	got := SanitizeCell(in)
	want := `line1\nline2\tcol\nend`

	if got != want {
		t.Errorf("SanitizeCell() = %q, want %q", got, want)
	}

	if UnescapeCell(got) != "line1\nline2\tcol\nend" {
		t.Errorf("UnescapeCell() = %q", UnescapeCell(got))
	}
}

func TestBuildBlock(t *testing.T) {
	rows := []Row{
		{Idx: 1, GUID: "a", Text: "Hello"},
		{Idx: 2, GUID: "b", Text: "Two\nlines"},
	}

	got := BuildBlock(rows)
	want := "1\tHello\n2\tTwo\\nlines\n"
	if got != want {
		t.Errorf("BuildBlock() = %q, want %q", got, want)
	}
}

func TestParseBlock(t *testing.T) {
	output := "Here you go:\n1\tAhoj\n2\t  \nx\tnope\n3\tSvět\r\n  4\tČtyři\n3\tSvěte\n"

	got := ParseBlock(output)

	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(got), got)
	}
	if got[1] != "Ahoj" {
		t.Errorf("got[1] = %q", got[1])
	}
	if _, ok := got[2]; ok {
		t.Error("blank translation should be dropped")
	}
	if got[3] != "Světe" {
		t.Errorf("repeated idx should keep last line, got %q", got[3])
	}
	if got[4] != "Čtyři" {
		t.Errorf("got[4] = %q", got[4])
	}
}

func TestBlockIndexes(t *testing.T) {
	user := "Header with `idx\\tSource`.\n\n5\tA\n7\tB\n"
	got := BlockIndexes(user)

	if len(got) != 2 || got[0] != 5 || got[1] != 7 {
		t.Errorf("BlockIndexes() = %v, want [5 7]", got)
	}
}
