//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Serve builds the binary and starts the HTTP API on the configured address.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "serve")
}

// Analyze builds the binary and analyzes a comma-separated list of PMIDs,
// writing a table to stdout.
func Analyze(pmids string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "analyze", strings.TrimSpace(pmids))
}
