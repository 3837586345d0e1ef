package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"borrowck/internal/diag"
	"borrowck/internal/explain"
)

var explainCmd = &cobra.Command{
	Use:   "explain <code>",
	Short: "Explain a diagnostic code, e.g. B0005",
	Args: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		if list {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if list, _ := cmd.Flags().GetBool("list"); list {
			for _, c := range diag.Codes() {
				fmt.Fprintf(out, "%s  %-22s %s\n", c.ID(), c.Kind(), c.Title())
			}
			return nil
		}
		code, err := diag.ParseCode(args[0])
		if err != nil {
			return err
		}
		text, err := explain.Render(code)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, text)
		return err
	},
}

func init() {
	explainCmd.Flags().Bool("list", false, "list every known code")
}
