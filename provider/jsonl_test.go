package provider

import (
	"errors"
	"strings"
	"testing"
)

func TestBatchLine_RoundTrip(t *testing.T) {
	req := CompletionRequest{CustomID: "prep_000001", Model: "gpt-5-mini", System: "Rules", User: "H\n\n1\tHello <b>\n"}
	line := BatchLine(req, ChatOptions{})

	if strings.Contains(string(line), "\n") {
		t.Fatal("line must not contain raw newlines")
	}
	if !strings.Contains(string(line), `"url":"/v1/chat/completions"`) {
		t.Errorf("unexpected line: %s", line)
	}

	got, err := ParseBatchLine(line)
	if err != nil {
		t.Fatalf("ParseBatchLine failed: %v", err)
	}
	if got != req {
		t.Errorf("round trip = %+v, want %+v", got, req)
	}
}

func TestParseBatchLine_ResponsesFormat(t *testing.T) {
	line := `{"custom_id": "prep_000002", "method": "POST", "url": "/v1/responses",
		"body": {"model": "gpt-5-mini", "input": [{"role": "system", "content": "S"}, {"role": "user", "content": "U"}]}}`

	got, err := ParseBatchLine([]byte(line))
	if err != nil {
		t.Fatalf("ParseBatchLine failed: %v", err)
	}
	if got.CustomID != "prep_000002" || got.System != "S" || got.User != "U" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestParseBatchLine_NoUser(t *testing.T) {
	_, err := ParseBatchLine([]byte(`{"custom_id": "x", "body": {"messages": []}}`))
	if err == nil {
		t.Error("expected error")
	}
}

func TestParseOutputLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		text    string
		errPart string
	}{
		{
			name: "chat completion",
			line: `{"id": "r1", "custom_id": "a", "response": {"status_code": 200, "body": {"choices": [{"message": {"role": "assistant", "content": "1\tAhoj"}}]}}, "error": null}`,
			text: "1\tAhoj",
		},
		{
			name: "responses output_text",
			line: `{"custom_id": "a", "response": {"status_code": 200, "body": {"output_text": "1\tSvět"}}}`,
			text: "1\tSvět",
		},
		{
			name: "responses output content",
			line: `{"custom_id": "a", "response": {"status_code": 200, "body": {"output": [{"content": [{"text": "1\tA"}, {"text": "2\tB"}]}]}}}`,
			text: "1\tA\n2\tB",
		},
		{
			name:    "line error",
			line:    `{"custom_id": "a", "response": null, "error": {"code": "server_error", "message": "boom"}}`,
			errPart: "server_error: boom",
		},
		{
			name:    "http error",
			line:    `{"custom_id": "a", "response": {"status_code": 400, "body": {"error": {"message": "bad"}}}}`,
			errPart: "status 400: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutputLine([]byte(tt.line))
			if err != nil {
				t.Fatal(err)
			}
			if got.CustomID != "a" {
				t.Errorf("CustomID = %q", got.CustomID)
			}
			if got.Text != tt.text {
				t.Errorf("Text = %q, want %q", got.Text, tt.text)
			}
			if !strings.Contains(got.Error, tt.errPart) {
				t.Errorf("Error = %q, want containing %q", got.Error, tt.errPart)
			}
		})
	}
}

func TestResultAndErrorLines(t *testing.T) {
	ok, err := ParseOutputLine(ResultLine("a", "1\tAhoj"))
	if err != nil || ok.Text != "1\tAhoj" || ok.Error != "" {
		t.Errorf("ResultLine round trip = %+v, %v", ok, err)
	}

	bad, err := ParseOutputLine(ErrorLine("b", errors.New("timeout")))
	if err != nil || bad.Text != "" || !strings.Contains(bad.Error, "timeout") {
		t.Errorf("ErrorLine round trip = %+v, %v", bad, err)
	}
}
