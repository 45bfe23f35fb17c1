// Package wotrtl provides the building blocks of an AI-assisted game
// localization pipeline: batch translation through an OpenAI-compatible API,
// heuristic auditing, spreadsheet patching and review overlays.
//
// The root package holds the shared vocabulary (rows, entries, errors),
// provider decorators (retry, rate limiting), the cached request translator
// and the diff used by comparison reports. Subpackages implement the tools:
//
//	catalog   source/translation documents and the index map
//	batch     prepare, run, reslice, backfill and merge of translation batches
//	audit     missing/suspect/corrupt detection
//	patch     correction spreadsheets applied to a translation document
//	overlay   index overlays and speaker exports
//	report    comparison reports (TSV, HTML)
//	provider  OpenAI and mock providers
//	cache     response caches (memory, Redis)
//
// Basic usage:
//
//	p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	t := wotrtl.NewTranslator(wotrtl.NewRetryableProvider(p, wotrtl.DefaultRetryConfig()),
//	    wotrtl.WithCache(cache.NewInMemoryCache(0)),
//	)
//	text, err := t.Translate(ctx, wotrtl.CompletionRequest{
//	    Model:  "gpt-4o-mini",
//	    System: wotrtl.DefaultPrompts().SystemRules,
//	    User:   wotrtl.DefaultPrompts().UserHeader + "1\tHello\n",
//	})
package wotrtl
