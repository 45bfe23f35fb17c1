package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/wotrcz/wotrtl"
)

// ChatOptions holds the generation parameters sent with every request.
type ChatOptions struct {
	Temperature         float32 // 0 leaves the model default
	MaxCompletionTokens int     // 0 leaves the model default
	ReasoningEffort     string  // "minimal", "low", ... for reasoning models
}

// ChatRequest converts a completion request to an OpenAI chat request.
func ChatRequest(req CompletionRequest, opts ChatOptions) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature:         opts.Temperature,
		MaxCompletionTokens: opts.MaxCompletionTokens,
		ReasoningEffort:     opts.ReasoningEffort,
	}
}

// BatchLine renders one Batch API request line (without trailing newline).
func BatchLine(req CompletionRequest, opts ChatOptions) []byte {
	return openai.BatchChatCompletionRequest{
		CustomID: req.CustomID,
		Body:     ChatRequest(req, opts),
		Method:   "POST",
		URL:      openai.BatchEndpointChatCompletions,
	}.MarshalBatchLineItem()
}

// requestLine accepts chat-completion lines and the older Responses API
// lines (body.input instead of body.messages).
type requestLine struct {
	CustomID string `json:"custom_id"`
	Body     struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Input []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"input"`
	} `json:"body"`
}

// ParseBatchLine reads a request line back into a completion request.
func ParseBatchLine(line []byte) (CompletionRequest, error) {
	var rl requestLine
	if err := json.Unmarshal(line, &rl); err != nil {
		return CompletionRequest{}, &wotrtl.InputError{Message: "malformed request line", Cause: err}
	}
	req := CompletionRequest{CustomID: rl.CustomID, Model: rl.Body.Model}
	msgs := rl.Body.Messages
	if len(msgs) == 0 {
		msgs = rl.Body.Input
	}
	for _, m := range msgs {
		switch m.Role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleDeveloper:
			req.System = m.Content
		case openai.ChatMessageRoleUser:
			req.User = m.Content
		}
	}
	if req.User == "" {
		return req, &wotrtl.InputError{Message: fmt.Sprintf("request %q has no user message", rl.CustomID)}
	}
	return req, nil
}

// OutputLine is one line of a batch output or error file.
type OutputLine struct {
	CustomID string
	Text     string // Assistant text, empty on error
	Error    string // Error code/message, empty on success
}

type outputBody struct {
	openai.ChatCompletionResponse
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Text *string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

type outputLine struct {
	ID       string `json:"id,omitempty"`
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
	Error json.RawMessage `json:"error"`
}

// ParseOutputLine reads one output line. The text is taken from the chat
// completion choices, or from output_text / output[].content[].text of
// Responses API bodies.
func ParseOutputLine(line []byte) (OutputLine, error) {
	var ol outputLine
	if err := json.Unmarshal(line, &ol); err != nil {
		return OutputLine{}, fmt.Errorf("malformed output line: %w", err)
	}
	out := OutputLine{CustomID: ol.CustomID}

	if msg := errorText(ol.Error); msg != "" {
		out.Error = msg
		return out, nil
	}
	if ol.Response == nil || len(ol.Response.Body) == 0 {
		out.Error = "empty response"
		return out, nil
	}
	if ol.Response.StatusCode >= 400 {
		out.Error = fmt.Sprintf("status %d", ol.Response.StatusCode)
		if msg := errorText(bodyError(ol.Response.Body)); msg != "" {
			out.Error += ": " + msg
		}
		return out, nil
	}

	var body outputBody
	if err := json.Unmarshal(ol.Response.Body, &body); err != nil {
		out.Error = "malformed response body"
		return out, nil
	}
	out.Text = extractText(body)
	return out, nil
}

func extractText(body outputBody) string {
	if strings.TrimSpace(body.OutputText) != "" {
		return body.OutputText
	}
	var chunks []string
	for _, item := range body.Output {
		for _, c := range item.Content {
			if c.Text != nil {
				chunks = append(chunks, *c.Text)
			}
		}
	}
	if len(chunks) > 0 {
		return strings.Join(chunks, "\n")
	}
	if len(body.Choices) > 0 {
		return body.Choices[0].Message.Content
	}
	return ""
}

func bodyError(body json.RawMessage) json.RawMessage {
	var b struct {
		Error json.RawMessage `json:"error"`
	}
	_ = json.Unmarshal(body, &b)
	return b.Error
}

func errorText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && (e.Code != "" || e.Message != "") {
		if e.Code == "" {
			return e.Message
		}
		return e.Code + ": " + e.Message
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

// ResultLine renders a successful answer in the batch output format, so
// synchronous results read back like batch results.
func ResultLine(customID, text string) []byte {
	body, _ := json.Marshal(openai.ChatCompletionResponse{
		Object: "chat.completion",
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text},
			FinishReason: openai.FinishReasonStop,
		}},
	})
	line, _ := json.Marshal(map[string]any{
		"custom_id": customID,
		"response": map[string]any{
			"status_code": 200,
			"body":        json.RawMessage(body),
		},
		"error": nil,
	})
	return line
}

// ErrorLine renders a failed request in the batch output format.
func ErrorLine(customID string, err error) []byte {
	line, _ := json.Marshal(map[string]any{
		"custom_id": customID,
		"response":  nil,
		"error":     map[string]string{"code": "request_failed", "message": err.Error()},
	})
	return line
}
