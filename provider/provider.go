// Package provider implements translation backends: the OpenAI chat and
// Batch APIs, and an in-memory mock for tests.
package provider

import "github.com/wotrcz/wotrtl"

// AIProvider is an alias to the main package interface for convenience.
type AIProvider = wotrtl.AIProvider

// BatchProvider is an alias to the main package interface for convenience.
type BatchProvider = wotrtl.BatchProvider

// CompletionRequest is an alias to the main package type.
type CompletionRequest = wotrtl.CompletionRequest
