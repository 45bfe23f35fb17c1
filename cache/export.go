package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

// ExportVersion is written to every export file.
const ExportVersion = "1.0"

// ExportFormat represents the JSON structure for cache export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExportableCache is a cache that can list its keys.
type ExportableCache interface {
	TranslationCache
	Keys() []string
}

// Exporter provides cache export functionality.
type Exporter struct {
	cache TranslationCache
	now   func() time.Time
}

// NewExporter creates a new cache exporter.
func NewExporter(cache TranslationCache) *Exporter {
	return &Exporter{cache: cache, now: time.Now}
}

// Export writes the cache contents, sorted by key, as indented JSON.
func (e *Exporter) Export(w io.Writer, metadata map[string]string) error {
	entries, err := e.entries()
	if err != nil {
		return err
	}

	export := ExportFormat{
		Version:    ExportVersion,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// ExportToFile exports the cache to a file, replacing it atomically.
func (e *Exporter) ExportToFile(path string, metadata map[string]string) error {
	return catalog.WriteAtomic(path, func(w io.Writer) error {
		return e.Export(w, metadata)
	})
}

func (e *Exporter) entries() ([]ExportEntry, error) {
	c, ok := e.cache.(ExportableCache)
	if !ok {
		return nil, &wotrtl.CacheError{Message: fmt.Sprintf("cache type %T does not support export", e.cache)}
	}

	keys := c.Keys()
	entries := make([]ExportEntry, 0, len(keys))
	for _, key := range keys {
		// Entries may expire between Keys and Get.
		if value, ok := c.Get(key); ok {
			entries = append(entries, ExportEntry{Key: key, Value: value})
		}
	}
	return entries, nil
}

// Importer provides cache import functionality.
type Importer struct {
	cache TranslationCache
}

// NewImporter creates a new cache importer.
func NewImporter(cache TranslationCache) *Importer {
	return &Importer{cache: cache}
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Skipped  int // Entries with an empty key or value
	Failed   int
}

// Import reads cache entries from a reader and loads them into the cache.
func (i *Importer) Import(r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, &wotrtl.InputError{Message: "malformed cache export", Cause: err}
	}
	if export.Version != "" && export.Version != ExportVersion {
		return nil, &wotrtl.InputError{Message: fmt.Sprintf("unsupported cache export version %q", export.Version)}
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	for _, entry := range export.Entries {
		if entry.Key == "" || entry.Value == "" {
			result.Skipped++
			continue
		}
		if err := i.cache.Set(entry.Key, entry.Value); err != nil {
			result.Failed++
			continue
		}
		result.Imported++
	}

	return result, nil
}

// ImportFromFile imports cache entries from a file.
func (i *Importer) ImportFromFile(path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot open cache export", Cause: err}
	}
	defer f.Close()

	return i.Import(f)
}
