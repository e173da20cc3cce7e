// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bioanalyzer/internal/cache"
	"github.com/pdiddy/bioanalyzer/internal/format"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
	Long: `Cache reports on and maintains the SQLite database that holds analyses,
paper metadata, and full text. Records older than the validity window are
ignored on read; sweep deletes records older than the sweep age.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts and database size",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete records older than the sweep age",
	Args:  cobra.NoArgs,
	RunE:  runCacheSweep,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached record",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <pmid[,pmid...]>",
	Short: "Delete cached records for the given papers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheDelete,
}

var cacheSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find cached analyses whose content mentions text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheSearch,
}

func init() {
	cacheSweepCmd.Flags().Duration("max-age", 0, "delete records older than this (default cache.sweep_age, 168h)")
	cacheClearCmd.Flags().Bool("yes", false, "confirm deleting every record")
	cacheDeleteCmd.Flags().String("kind", "", "record kind to delete: analysis, metadata, fulltext (default all)")
	cacheSearchCmd.Flags().Int("limit", 10, "maximum number of analyses to return")
	cacheSearchCmd.Flags().String("format", "table", "output format: table, json, csv, xml, yaml")

	cacheCmd.AddCommand(cacheStatsCmd, cacheSweepCmd, cacheClearCmd, cacheDeleteCmd, cacheSearchCmd)
	rootCmd.AddCommand(cacheCmd)
}

var kindLabels = map[cache.Kind]string{
	cache.KindAnalysis: "Analysis",
	cache.KindMetadata: "Metadata",
	cache.KindFullText: "Full-text",
}

// withCache runs fn against the opened cache.
func withCache(cmd *cobra.Command, fn func(*app, *cache.Store) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	store, err := a.requireCache()
	if err != nil {
		return err
	}
	return fn(a, store)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	return withCache(cmd, func(_ *app, store *cache.Store) error {
		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Path:\t%s\n", st.Path)
		for _, k := range cache.Kinds {
			fmt.Fprintf(tw, "%s records:\t%d\n", kindLabels[k], st.Counts[k])
		}
		fmt.Fprintf(tw, "Total records:\t%d\n", st.Total())
		fmt.Fprintf(tw, "Analyses (24h):\t%d\n", st.RecentAnalyses)
		fmt.Fprintf(tw, "Size:\t%.2f MB\n", st.SizeMB)
		return tw.Flush()
	})
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	maxAge, _ := cmd.Flags().GetDuration("max-age")
	return withCache(cmd, func(a *app, store *cache.Store) error {
		if maxAge <= 0 {
			maxAge = a.cfg.Cache.SweepAge
		}
		n := store.Sweep(cmd.Context(), maxAge)
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s) older than %s\n", n, maxAge)
		return nil
	})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return eris.New("refusing to clear the cache without --yes")
	}
	return withCache(cmd, func(_ *app, store *cache.Store) error {
		if !store.ClearAll(cmd.Context()) {
			return eris.New("clearing cache failed; see log")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
		return nil
	})
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	ids := types.ParsePaperIDs(args)
	if len(ids) == 0 {
		return eris.New("provide one or more PubMed IDs")
	}
	kinds := cache.Kinds
	if raw, _ := cmd.Flags().GetString("kind"); raw != "" {
		k, err := cache.ParseKind(raw)
		if err != nil {
			return err
		}
		kinds = []cache.Kind{k}
	}

	return withCache(cmd, func(_ *app, store *cache.Store) error {
		failed := 0
		for _, id := range ids {
			for _, k := range kinds {
				if !store.Delete(cmd.Context(), k, id) {
					failed++
				}
			}
		}
		if failed > 0 {
			return eris.Errorf("%d delete(s) failed; see log", failed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted cached records for %d paper(s)\n", len(ids))
		return nil
	})
}

func runCacheSearch(cmd *cobra.Command, args []string) error {
	f, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	return withCache(cmd, func(_ *app, store *cache.Store) error {
		entries, err := store.Search(cmd.Context(), query, limit)
		if err != nil {
			return err
		}
		results := make([]types.AnalysisResult, 0, len(entries))
		for _, e := range entries {
			var r types.AnalysisResult
			if err := json.Unmarshal(e.Payload, &r); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: unreadable cached analysis (stored %s)\n",
					e.Key, e.Timestamp.Format(time.RFC3339))
				continue
			}
			r.Source = "cache"
			results = append(results, r)
		}
		return format.Results(cmd.OutOrStdout(), f, results)
	})
}
