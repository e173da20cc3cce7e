// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/schedule"
	"github.com/pdiddy/bioanalyzer/internal/server"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve starts the HTTP API under /api/v1 and, when the cache is available,
sweeps records older than cache.sweep_age on the cache.sweep_schedule cron
schedule. The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	a, err := newApp(cmd, func(c *types.Config) {
		if addr != "" {
			c.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	deps := server.Deps{
		Analyzer:  a.analyzer,
		Retriever: a.retriever,
		LLM:       a.extractor,
		Version:   version,
	}
	if a.store != nil {
		deps.Cache = a.store

		sweeper := schedule.New(a.store, a.cfg.Cache.SweepSchedule, a.cfg.Cache.SweepAge, a.log)
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	checkUpstreams(ctx, a.log, a.retriever, a.extractor)

	a.log.Info("starting server",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("model", a.extractor.Model()),
		zap.Bool("cache", a.store != nil))

	return server.New(deps, a.cfg, a.log).ListenAndServe(ctx)
}

// upstreamCheckTimeout bounds each reachability check at startup.
const upstreamCheckTimeout = 10 * time.Second

type pinger interface {
	Probe(ctx context.Context) error
}

type modelPinger interface {
	pinger
	Enabled() bool
}

// checkUpstreams reports unreachable upstreams as degraded-mode warnings.
// It never fails: the server still answers from the cache and the keyword
// extractor when NCBI or the model is down.
func checkUpstreams(ctx context.Context, log *zap.Logger, ncbi pinger, llm modelPinger) {
	check := func(p pinger) error {
		cctx, cancel := context.WithTimeout(ctx, upstreamCheckTimeout)
		defer cancel()
		return p.Probe(cctx)
	}

	if err := check(ncbi); err != nil {
		log.Warn("NCBI unreachable, serving cached data only", zap.Error(err))
	}
	if llm == nil || !llm.Enabled() {
		return
	}
	if err := check(llm); err != nil {
		log.Warn("model backend unreachable, fields fall back to keyword extraction", zap.Error(err))
	}
}
