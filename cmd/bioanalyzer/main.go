// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bioanalyzer CLI.
// It analyzes PubMed papers for microbiome curation readiness, serves the
// same analysis over HTTP, and administers the result cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the bioanalyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "bioanalyzer",
	Short: "Assess PubMed papers for microbiome curation readiness",
	Long: `bioanalyzer retrieves PubMed papers by PMID and checks whether they report
the six fields a microbiome curator needs: host species, body site,
condition, sequencing type, taxa level, and sample size.

Fields are extracted with a language model when one is configured and with
keyword rules otherwise. Results are cached in SQLite and can be rendered as
a table, JSON, CSV, XML, or YAML, or served over HTTP with the serve command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = viper.GetString("log.level")
		}
		log := logging.Must(level, viper.GetString("log.format"))

		s, err := secrets.Load(secrets.DefaultDir, log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bioanalyzer.yaml or ~/.config/bioanalyzer/bioanalyzer.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bioanalyzer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bioanalyzer"))
		}
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
