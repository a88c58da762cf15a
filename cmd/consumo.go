package main

import "github.com/spf13/cobra"

var consumoCmd = &cobra.Command{
	Use:   "consumo",
	Short: "Municipal consumption-demand stages",
	Long:  "Score municipal demand from GDP, population and income tables, join it onto the IBGE mesh, sample demand-ranked centroids.",
}

func init() { rootCmd.AddCommand(consumoCmd) }
