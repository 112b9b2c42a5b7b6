// Command vectorize is the CLI façade over the vectorization engine:
// "embed" scans a table for NULL-embedding rows and fills them in,
// "model" lists/describes registered providers, "search" runs a one-shot
// similarity query. Grounded on cmd/memoryctl's cobra root+subcommand
// layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cockroachdb-vectors/vectorize/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "vectorize",
	Short: "Bulk vector-embedding pipeline for CockroachDB tables",
}

func main() {
	log := logger.New("vectorize")

	rootCmd.AddCommand(newEmbedCmd(log))
	rootCmd.AddCommand(newModelCmd())
	rootCmd.AddCommand(newSearchCmd(log))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
