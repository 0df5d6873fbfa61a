package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/seedvault/vault"
)

var passwdFromTemp bool

var passwdCmd = &cobra.Command{
	Use:   "change-passphrase",
	Short: "Re-encrypt the vault under a new passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			oldPassphrase string
			err           error
		)
		if passwdFromTemp {
			err = withTempPassphrase(func(tp *vault.TempPassphrase) error {
				temp, err := tp.IsTemporary(ctx)
				if err != nil {
					return err
				}
				if !temp {
					return fmt.Errorf("no temporary passphrase is active")
				}
				oldPassphrase, err = tp.GetOrCreate(ctx)
				return err
			})
		} else {
			oldPassphrase, err = readPassphrase("Current passphrase: ")
		}
		if err != nil {
			return err
		}
		newPassphrase, err := readNewPassphrase("New passphrase: ")
		if err != nil {
			return err
		}

		err = withManager(ctx, func(m *vault.Manager) error {
			return m.ChangePassphrase(ctx, userID, oldPassphrase, newPassphrase)
		})
		if err != nil {
			return err
		}
		if passwdFromTemp {
			if err := withTempPassphrase(func(tp *vault.TempPassphrase) error {
				return tp.MarkUserSet(ctx)
			}); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Passphrase changed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.Flags().BoolVar(&passwdFromTemp, "from-temp", false, "Replace the temporary passphrase with one you choose")
}
