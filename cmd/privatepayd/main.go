// main.go - privatepayd serves the private payment ledger, proof cache and
// orchestrator over HTTP.
//
// Usage:
//   privatepayd serve --admin 0x.. --orchestrator 0x.. [--config privatepay.yaml]
//   privatepayd keys --pk keys/payment_pk.bin --vk keys/payment_vk.bin
//   privatepayd version

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "privatepayd",
		Short:         "Private payment settlement daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newKeysCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
