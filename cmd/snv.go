package main

import "github.com/spf13/cobra"

var snvCmd = &cobra.Command{
	Use:   "snv",
	Short: "DNIT highway network stages",
	Long:  "Normalize SNV bulletins, inspect and apply revision diffs, join official shapefiles, summarize per BR/UF.",
}

func init() { rootCmd.AddCommand(snvCmd) }
