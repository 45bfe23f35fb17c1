package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/wotrcz/wotrtl"
)

// OpenAIProvider implements AIProvider and BatchProvider using OpenAI's API.
type OpenAIProvider struct {
	client *openai.Client
	chat   ChatOptions
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string          // OpenAI API key
	BaseURL    string          // Custom base URL (optional)
	HTTPClient openai.HTTPDoer // Custom HTTP client (optional)
	Chat       ChatOptions
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		chat:   cfg.Chat,
	}
}

// Complete sends one chat completion and returns the assistant text.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, ChatRequest(req, p.chat))
	if err != nil {
		return "", &wotrtl.ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return "", &wotrtl.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	return resp.Choices[0].Message.Content, nil
}

// SubmitBatch uploads a JSONL request file and creates a batch job for it.
func (p *OpenAIProvider) SubmitBatch(ctx context.Context, name string, jsonl []byte) (wotrtl.Job, error) {
	file, err := p.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   jsonl,
		Purpose: openai.PurposeBatch,
	})
	if err != nil {
		return wotrtl.Job{}, &wotrtl.ProviderError{
			Message:   "upload of " + name + " failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	resp, err := p.client.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      file.ID,
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: "24h",
		Metadata:         map[string]any{"file": name},
	})
	if err != nil {
		return wotrtl.Job{}, &wotrtl.ProviderError{
			Message:   "batch creation failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}
	return toJob(resp.Batch), nil
}

// RetrieveBatch returns the current state of a batch job.
func (p *OpenAIProvider) RetrieveBatch(ctx context.Context, id string) (wotrtl.Job, error) {
	resp, err := p.client.RetrieveBatch(ctx, id)
	if err != nil {
		return wotrtl.Job{}, &wotrtl.ProviderError{
			Message:   "batch retrieval failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}
	return toJob(resp.Batch), nil
}

// CancelBatch asks the API to stop a batch job.
func (p *OpenAIProvider) CancelBatch(ctx context.Context, id string) error {
	if _, err := p.client.CancelBatch(ctx, id); err != nil {
		return &wotrtl.ProviderError{
			Message:   "batch cancel failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}
	return nil
}

// DownloadFile returns the content of an output or error file.
func (p *OpenAIProvider) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	raw, err := p.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, &wotrtl.ProviderError{
			Message:   "download of " + fileID + " failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}
	defer raw.Close()

	data, err := io.ReadAll(raw)
	if err != nil {
		return nil, &wotrtl.ProviderError{Message: "reading " + fileID + " failed", Cause: err, Retryable: true}
	}
	return data, nil
}

func toJob(b openai.Batch) wotrtl.Job {
	job := wotrtl.Job{
		ID:        b.ID,
		Status:    b.Status,
		Total:     b.RequestCounts.Total,
		Completed: b.RequestCounts.Completed,
		Failed:    b.RequestCounts.Failed,
	}
	if b.OutputFileID != nil {
		job.OutputFileID = *b.OutputFileID
	}
	if b.ErrorFileID != nil {
		job.ErrorFileID = *b.ErrorFileID
	}
	if b.Errors != nil {
		for _, e := range b.Errors.Data {
			job.Errors = append(job.Errors, e.Code+": "+e.Message)
		}
	}
	return job
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"eof",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

var (
	_ AIProvider    = (*OpenAIProvider)(nil)
	_ BatchProvider = (*OpenAIProvider)(nil)
)
