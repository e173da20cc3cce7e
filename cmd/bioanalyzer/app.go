// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/analyze"
	"github.com/pdiddy/bioanalyzer/internal/cache"
	"github.com/pdiddy/bioanalyzer/internal/extract"
	"github.com/pdiddy/bioanalyzer/internal/format"
	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/retrieve"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// app wires the components one command needs. The cache is optional:
// when it cannot be opened every command still works, uncached.
type app struct {
	cfg       types.Config
	log       *zap.Logger
	store     *cache.Store
	retriever *retrieve.Retriever
	extractor *extract.Extractor
	analyzer  *analyze.Analyzer
}

// newApp loads configuration, applies the command's overrides, and builds
// the components.
func newApp(cmd *cobra.Command, overrides ...func(*types.Config)) (*app, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, eris.Wrap(err, "building logger")
	}

	a := &app{cfg: cfg, log: log}

	store, err := cache.Open(cfg.Cache, log)
	if err != nil {
		log.Warn("cache unavailable, continuing without it", zap.Error(err))
	} else {
		a.store = store
	}

	retrieveOpts := []retrieve.Option{retrieve.WithLogger(log)}
	if a.store != nil {
		retrieveOpts = append(retrieveOpts, retrieve.WithCache(a.store, cfg.Cache.Validity))
	}
	a.retriever = retrieve.New(cfg.NCBI, retrieveOpts...)

	backend, err := extract.NewBackend(cfg.AI, &http.Client{})
	if err != nil {
		if !errors.Is(err, extract.ErrMissingAPIKey) {
			a.Close()
			return nil, err
		}
		log.Warn("no model API key configured, using keyword extraction",
			zap.String("provider", string(cfg.AI.Provider)))
	}
	a.extractor = extract.New(backend, cfg.AI, log)

	analyzeOpts := []analyze.Option{analyze.WithLogger(log)}
	if a.store != nil {
		analyzeOpts = append(analyzeOpts, analyze.WithCache(a.store, cfg.Cache.Validity))
	}
	a.analyzer = analyze.New(a.retriever, a.extractor, cfg.Analysis, analyzeOpts...)

	return a, nil
}

// requireCache returns the store or an error naming the configured path.
func (a *app) requireCache() (*cache.Store, error) {
	if a.store == nil {
		return nil, eris.Errorf("cache at %s could not be opened", a.cfg.Cache.Path)
	}
	return a.store, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing cache", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// outputTarget returns the writer for --output, or stdout when unset.
// The returned close function is always safe to call.
func outputTarget(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "creating output file %s", path)
	}
	return f, f.Close, nil
}

func formatFlag(cmd *cobra.Command) (format.Format, error) {
	raw, _ := cmd.Flags().GetString("format")
	return format.Parse(raw)
}
