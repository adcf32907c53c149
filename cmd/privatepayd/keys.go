// keys.go - Command generating the Groth16 keys of the payment circuit.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"privatepay/internal/circuit"
	"privatepay/internal/config"
)

func newKeysCmd() *cobra.Command {
	d := config.DefaultConfig()
	var pkPath, vkPath string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Compile the payment circuit and set up or load its Groth16 keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, path := range []string{pkPath, vkPath} {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("failed to create key directory: %w", err)
				}
			}
			ccs, err := circuit.Compile()
			if err != nil {
				return err
			}
			if _, _, err := circuit.SetupOrLoadKeys(ccs, pkPath, vkPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payment circuit: %d constraints\nproving key: %s\nverifying key: %s\n",
				ccs.GetNbConstraints(), pkPath, vkPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&pkPath, "pk", d.ProvingKeyPath, "proving key path")
	cmd.Flags().StringVar(&vkPath, "vk", d.VerifyingKeyPath, "verifying key path")
	return cmd
}
