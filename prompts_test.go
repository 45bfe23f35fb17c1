package wotrtl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPrompts(t *testing.T) {
	p := DefaultPrompts()

	if !strings.Contains(p.SystemRules, "Překládej do češtiny") {
		t.Errorf("unexpected system rules: %q", p.SystemRules)
	}
	if !strings.HasSuffix(p.UserHeader, "\n\n") {
		t.Error("user header should end with a blank line")
	}
}

func TestDefaultPromptsFor(t *testing.T) {
	if DefaultPromptsFor("cs_CZ") != DefaultPrompts() {
		t.Error("Czech should use the built-in prompts")
	}

	sk := DefaultPromptsFor("sk_SK")
	if !strings.Contains(sk.SystemRules, "Slovak (Slovakia)") {
		t.Errorf("expected language name in rules, got %q", sk.SystemRules)
	}
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.json")
	if err := os.WriteFile(path, []byte(`{"system_rules": "Custom rules", "user_header": ""}`), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPrompts(path, DefaultPrompts())
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}

	if p.SystemRules != "Custom rules" {
		t.Errorf("SystemRules = %q, want override", p.SystemRules)
	}
	if p.UserHeader != DefaultPrompts().UserHeader {
		t.Error("blank user_header should keep the default")
	}
}

func TestLoadPrompts_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.json")
	if err := os.WriteFile(path, []byte(`{nope`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadPrompts(path, DefaultPrompts())
	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestPrompts_Request(t *testing.T) {
	p := Prompts{SystemRules: "S", UserHeader: "H\n\n"}
	req := p.Request("prep_000001", "m", "1\tHello\n")

	if req.User != "H\n\n1\tHello\n" {
		t.Errorf("User = %q", req.User)
	}
	if req.System != "S" || req.CustomID != "prep_000001" || req.Model != "m" {
		t.Errorf("unexpected request: %+v", req)
	}
}
