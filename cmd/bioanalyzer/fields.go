// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/bioanalyzer/internal/format"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Describe the curation fields and status values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		return format.Fields(cmd.OutOrStdout(), f)
	},
}

func init() {
	fieldsCmd.Flags().String("format", "table", "output format: table, json, csv, xml, yaml")

	rootCmd.AddCommand(fieldsCmd)
}
