package main

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var cliJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := cliJSON.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
