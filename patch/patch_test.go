package patch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

func testDoc() *catalog.Document {
	return catalog.NewDocument([]wotrtl.Entry{
		{Key: "g1", Text: "Ahoj"},
		{Key: "g2", Text: "Svět"},
		{Key: "g3", Text: "Jdi za {g|Kingmaker}králem{/g} {name}"},
		{Key: "42", Text: "Číslo"},
	})
}

func table(t *testing.T, s string) *catalog.Table {
	t.Helper()
	tbl, err := catalog.ParseTable(strings.NewReader(s), '\t')
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func actions(res *Result) []string {
	var out []string
	for _, r := range res.Rows {
		out = append(out, string(r.Action))
	}
	return out
}

func TestApply(t *testing.T) {
	doc := testDoc()
	m := catalog.NewIndexMap(doc)
	tbl := table(t, "IDX\tTranslation\n"+
		"1\tNazdar\n"+
		"2\tSvět\n"+
		"g2\t\n"+
		"99\tx\n"+
		"unknown\tx\n"+
		"42\tDvaačtyřicet\\nřádek\n"+
		"\tignored\n")

	res, err := Apply(doc, m, tbl, DefaultOptions())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := "changed same empty_skip missing_key missing_key changed"
	if got := strings.Join(actions(res), " "); got != want {
		t.Errorf("actions = %q, want %q", got, want)
	}
	if res.KeyCol != "IDX" || res.ValueCol != "Translation" {
		t.Errorf("columns = %q %q", res.KeyCol, res.ValueCol)
	}

	if v, _ := res.Document.Get("g1"); v != "Nazdar" {
		t.Errorf("g1 = %q", v)
	}
	if v, _ := res.Document.Get("42"); v != "Dvaačtyřicet\nřádek" {
		t.Errorf("42 = %q", v)
	}
	if v, _ := doc.Get("g1"); v != "Ahoj" {
		t.Error("input document was modified")
	}

	var ke *wotrtl.KeyError
	if !errors.As(res.Rows[3].Err, &ke) || ke.Key != "99" {
		t.Errorf("row error = %v", res.Rows[3].Err)
	}
	if res.Failed() {
		t.Error("Failed without FailOnMissing")
	}
}

func TestApply_AutoKeyPrefersMapIndexes(t *testing.T) {
	doc := testDoc()
	m := catalog.NewIndexMap(doc)

	// "4" is the index of GUID "42"; "42" is not an index but a GUID
	res, err := Apply(doc, m, table(t, "key\tcs\n4\tČtyři\n"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := res.Document.Get("42"); v != "Čtyři" || res.Changed() != 1 {
		t.Errorf("42 = %q", v)
	}

	opts := DefaultOptions()
	opts.KeyType = KeyGUID
	res, _ = Apply(doc, m, table(t, "key\tcs\n42\tČtyři\n"), opts)
	if v, _ := res.Document.Get("42"); v != "Čtyři" {
		t.Errorf("guid key: 42 = %q", v)
	}

	opts.KeyType = KeyIdx
	res, _ = Apply(doc, m, table(t, "key\tcs\ng1\tx\n99\tx\n"), opts)
	if got := strings.Join(actions(res), " "); got != "invalid_key invalid_key" {
		t.Errorf("actions = %q", got)
	}
	if _, err := Apply(doc, nil, table(t, "key\tcs\n1\tx\n"), opts); err == nil {
		t.Error("expected error for idx keys without a map")
	}
}

func TestApply_DuplicatesLastWins(t *testing.T) {
	doc := testDoc()
	res, err := Apply(doc, nil, table(t, "guid\ttranslation\ng1\tA\ng2\tB\ng1\tC\n"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := res.Document.Get("g1"); v != "C" {
		t.Errorf("g1 = %q", v)
	}
	if res.Duplicates != 1 || len(res.Rows) != 2 || res.Changed() != 2 {
		t.Errorf("duplicates = %d, rows = %d", res.Duplicates, len(res.Rows))
	}
}

func TestApply_Options(t *testing.T) {
	doc := testDoc()
	opts := DefaultOptions()
	opts.SkipEmpty = false
	opts.Unescape = false
	opts.FailOnMissing = true

	res, err := Apply(doc, nil, table(t, "guid\ttranslation\ng1\t\ng2\ta\\nb\nnope\tx\n"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := res.Document.Get("g1"); v != "" {
		t.Errorf("empty value not applied: %q", v)
	}
	if v, _ := res.Document.Get("g2"); v != `a\nb` {
		t.Errorf("value unescaped: %q", v)
	}
	if !res.Failed() {
		t.Error("missing key should fail the run")
	}
}

func TestApply_Columns(t *testing.T) {
	doc := testDoc()
	opts := DefaultOptions()
	opts.ValueCol = "fixed"
	if _, err := Apply(doc, nil, table(t, "guid\ttranslation\n"), opts); err == nil {
		t.Error("expected error for a missing value column")
	}
	opts = DefaultOptions()
	opts.KeyCol = "nope"
	if _, err := Apply(doc, nil, table(t, "guid\ttranslation\n"), opts); err == nil {
		t.Error("expected error for a missing key column")
	}
	res, err := Apply(doc, nil, table(t, "id\tValue\ng2\tZemě\n"), DefaultOptions())
	if err != nil || res.Changed() != 1 {
		t.Errorf("fallback columns: %v %+v", err, res)
	}
}

func TestApply_Guards(t *testing.T) {
	doc := testDoc()
	broken := "guid\ttranslation\ng3\tJdi za králem {name}\n"
	kept := "guid\ttranslation\ng3\tBěž za {g|Kingmaker}králem{/g} {name}\n"

	opts := DefaultOptions()
	opts.VerifyGuards = true

	res, _ := Apply(doc, nil, table(t, broken), opts)
	if res.Changed() != 1 || res.GuardFailures != 1 {
		t.Errorf("patch mode: changed %d, failures %d", res.Changed(), res.GuardFailures)
	}

	opts.OnGuardFail = GuardSkip
	res, _ = Apply(doc, nil, table(t, broken), opts)
	if res.Rows[0].Action != ActionGuardSkip || res.Changed() != 0 {
		t.Errorf("skip mode: %+v", res.Rows)
	}
	res, _ = Apply(doc, nil, table(t, kept), opts)
	if res.Changed() != 1 || res.GuardFailures != 0 {
		t.Errorf("guards should hold: %+v", res.Rows)
	}

	opts.OnGuardFail = GuardFail
	if _, err := Apply(doc, nil, table(t, broken), opts); err == nil {
		t.Error("expected guard error")
	}
}

func TestGuardsOK(t *testing.T) {
	tests := []struct {
		prev, next string
		want       bool
	}{
		{"plain", "prostý", true},
		{"{a} and {b}", "{a} a {b}", true},
		{"{a} and {b}", "{b} a {a}", false},
		{"{g|X}x{/g}", "{G|X}x{/G}", false},
		{"{g|X}x{/g}", "{g|X}y{/g}", false},
		{"{g|X}x{/g}", "před {g|X}x{/g} po", true},
	}
	for _, tt := range tests {
		if got := GuardsOK(tt.prev, tt.next); got != tt.want {
			t.Errorf("GuardsOK(%q, %q) = %v", tt.prev, tt.next, got)
		}
	}
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "cs.json")
	src := "{\n  \"$id\": \"1\",\n  \"strings\": {\n    \"g1\": \"Ahoj\",\n    \"g2\": \"Svět\"\n  }\n}\n"
	os.WriteFile(docPath, []byte(src), 0o644)
	tsv := filepath.Join(dir, "fix.tsv")
	os.WriteFile(tsv, []byte("guid\ttranslation\ng1\t<Nazdar>\ng2\tSvět\n"), 0o644)
	report := filepath.Join(dir, "report.tsv")

	opts := FileOptions{Options: DefaultOptions(), DryRun: true, Backup: true, Report: report}
	if _, err := ApplyFile(docPath, tsv, nil, opts); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(docPath); string(data) != src {
		t.Error("dry run wrote the document")
	}

	opts.DryRun = false
	res, err := ApplyFile(docPath, tsv, nil, opts)
	if err != nil {
		t.Fatalf("ApplyFile failed: %v", err)
	}
	if res.Changed() != 1 {
		t.Errorf("changed = %d", res.Changed())
	}
	if data, _ := os.ReadFile(docPath + ".bak"); string(data) != src {
		t.Errorf("backup = %q", data)
	}
	first, _ := os.ReadFile(docPath)
	if !strings.Contains(string(first), `"g1": "<Nazdar>"`) || !strings.Contains(string(first), `"$id": "1"`) {
		t.Errorf("patched document:\n%s", first)
	}
	rep, _ := os.ReadFile(report)
	if want := "key\taction\told_text\tnew_text\ng1\tchanged\tAhoj\t<Nazdar>\ng2\tsame\tSvět\tSvět\n"; string(rep) != want {
		t.Errorf("report = %q", rep)
	}

	// applying again changes nothing
	res, err = ApplyFile(docPath, tsv, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(docPath)
	if res.Changed() != 0 || string(second) != string(first) {
		t.Error("second apply was not idempotent")
	}
}

func TestApplyFile_Output(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "cs.json")
	os.WriteFile(docPath, []byte(`{"g1": "Ahoj"}`), 0o644)
	tsv := filepath.Join(dir, "fix.tsv")
	os.WriteFile(tsv, []byte("guid\ttranslation\ng1\tNazdar\n"), 0o644)
	out := filepath.Join(dir, "out", "cs.json")

	if _, err := ApplyFile(docPath, tsv, nil, FileOptions{Options: DefaultOptions(), Output: out}); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(docPath); string(data) != `{"g1": "Ahoj"}` {
		t.Error("input modified")
	}
	doc, err := catalog.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Get("g1"); v != "Nazdar" {
		t.Errorf("g1 = %q", v)
	}
}

func TestApplyFile_FailOnMissingWritesNothing(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "cs.json")
	os.WriteFile(docPath, []byte(`{"g1": "Ahoj"}`), 0o644)
	tsv := filepath.Join(dir, "fix.tsv")
	os.WriteFile(tsv, []byte("guid\ttranslation\ng1\tNazdar\nzz\tNic\n"), 0o644)

	opts := FileOptions{Options: DefaultOptions()}
	opts.FailOnMissing = true
	res, err := ApplyFile(docPath, tsv, nil, opts)
	var keyErr *wotrtl.KeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("expected KeyError, got %v", err)
	}
	if res == nil || res.Counts[ActionMissingKey] != 1 {
		t.Errorf("result = %+v", res)
	}
	if data, _ := os.ReadFile(docPath); string(data) != `{"g1": "Ahoj"}` {
		t.Error("document written despite the failure")
	}
}

func TestApply_QuotedDialogue(t *testing.T) {
	doc := testDoc()
	tbl := table(t, "key\ttranslation\n"+
		"g1\t\"Ahoj,\" řekl.\n"+
		"g2\tMeč\n")

	res, err := Apply(doc, catalog.NewIndexMap(doc), tbl, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(actions(res), " "); got != "changed changed" {
		t.Fatalf("actions = %q", got)
	}
	if v, _ := res.Document.Get("g1"); v != `"Ahoj," řekl.` {
		t.Errorf("g1 = %q", v)
	}
	if v, _ := res.Document.Get("g2"); v != "Meč" {
		t.Errorf("g2 = %q", v)
	}
}
