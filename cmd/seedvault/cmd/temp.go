package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/seedvault/vault"
)

var tempCmd = &cobra.Command{
	Use:   "temp-passphrase",
	Short: "Manage the device-generated temporary passphrase",
}

var tempStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the temporary passphrase is in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTempPassphrase(func(tp *vault.TempPassphrase) error {
			temp, err := tp.IsTemporary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "temporary: %t\n", temp)
			return nil
		})
	},
}

var tempClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the temporary passphrase after choosing your own",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTempPassphrase(func(tp *vault.TempPassphrase) error {
			return tp.MarkUserSet(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(tempCmd)
	tempCmd.AddCommand(tempStatusCmd, tempClearCmd)
}
