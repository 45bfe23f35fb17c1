package main

import (
	"github.com/spf13/cobra"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/cache"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Export or import the response cache",
		Long: `Move cached model responses between machines or backends. The cache
backend comes from the config file (cache.backend memory or redis).`,
	}
	cmd.AddCommand(newCacheExportCmd(a), newCacheImportCmd(a))
	return cmd
}

// openCache opens the configured cache; backend none is an error here.
func (a *app) openCache(cmd *cobra.Command) (*cache.Handle, error) {
	h, err := cache.Open(cmd.Context(), a.cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	if h.Cache == nil {
		return nil, &wotrtl.CacheError{Message: "no cache configured (cache.backend is none)"}
	}
	return h, nil
}

func newCacheExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.json>",
		Short: "Write every cached response to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.openCache(cmd)
			if err != nil {
				return err
			}
			meta := map[string]string{
				"backend": a.cfg.Cache.Backend,
				"model":   a.cfg.Model,
				"tool":    wotrtl.UserAgent(),
			}
			if a.dryRun {
				a.dryRunNote()
				return nil
			}
			if err := cache.NewExporter(h.Cache).ExportToFile(args[0], meta); err != nil {
				h.Close()
				return err
			}
			a.ok("cache exported to %s", args[0])
			return h.Close()
		},
	}
}

func newCacheImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load responses from an export file into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.openCache(cmd)
			if err != nil {
				return err
			}
			if a.dryRun {
				a.dryRunNote()
				return nil
			}
			res, err := cache.NewImporter(h.Cache).ImportFromFile(args[0])
			if err != nil {
				h.Close()
				return err
			}
			// a file-backed memory cache is persisted on close
			if err := h.Close(); err != nil {
				return err
			}
			a.ok("imported=%d skipped=%d failed=%d (export version %s)", res.Imported, res.Skipped, res.Failed, res.Version)
			if res.Failed > 0 {
				a.fail("%d entries could not be stored", res.Failed)
			}
			return nil
		},
	}
}
