package main

import (
	"github.com/spf13/cobra"

	"borrowck/internal/cfg"
	"borrowck/internal/fixture"
	"borrowck/internal/source"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <fixture.toml>",
	Short: "Print the parsed CFG of a fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spans, err := cmd.Flags().GetBool("spans")
		if err != nil {
			return err
		}
		prog, err := fixture.Load(source.NewFileSet(), args[0])
		if err != nil {
			return err
		}
		return cfg.DumpModule(cmd.OutOrStdout(), prog.Module, prog.Types, cfg.DumpOptions{Spans: spans})
	},
}

func init() {
	dumpCmd.Flags().Bool("spans", false, "append the source span of every instruction")
}
