package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// knownModels lists the identifiers the registered provider families
// resolve, for "model list"/"model desc". Concrete provider families are
// free-form ("<family>/<anything>"), but the CLI advertises the models it
// actually validated against a real implementation.
var knownModels = []string{
	"local/minilm",
	"hosted/small",
	"hosted/large",
	"hosted/ada-002",
}

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "List or describe registered embedding providers",
	}
	cmd.AddCommand(newModelListCmd())
	cmd.AddCommand(newModelDescCmd())
	return cmd
}

func newModelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print id\\tlabel for each registered provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := buildRegistry()
			for _, id := range knownModels {
				p, err := reg.Resolve(id)
				if err != nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID(), p.Label())
			}
			return nil
		},
	}
}

func newModelDescCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "desc MODEL",
		Short: "Print label and description for MODEL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := buildRegistry()
			p, err := reg.Resolve(args[0])
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "unknown model %q: %v\n", args[0], err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", p.Label(), p.Description())
			return nil
		},
	}
}
