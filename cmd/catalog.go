package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cashback_bot/catalog"
	"cashback_bot/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the casino list",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a casinos file and print the enabled entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogCheck,
}

func init() {
	catalogCmd.AddCommand(catalogCheckCmd)
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.CasinosFile
	}

	c, err := catalog.LoadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out := cmd.OutOrStdout()
	for _, casino := range c.ListEnabled() {
		line := fmt.Sprintf("%-12s %-16s %s", casino.Code, casino.Name, casino.Identifier.Kind)
		if casino.Identifier.Regex != nil {
			line += " " + casino.Identifier.Regex.String()
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
