package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"

	"github.com/jmcleod/seedvault/vault"
)

var (
	unlockWords   int
	unlockUseTemp bool
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the vault, creating it with a new mnemonic on first use",
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, err := bip39Factory(unlockWords)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var passphrase string
		if unlockUseTemp {
			err = withTempPassphrase(func(tp *vault.TempPassphrase) error {
				passphrase, err = tp.GetOrCreate(ctx)
				return err
			})
		} else {
			passphrase, err = readPassphrase("Passphrase: ")
		}
		if err != nil {
			return err
		}

		return withManager(ctx, func(m *vault.Manager) error {
			res, err := m.CreateOrUnlockVault(ctx, userID, passphrase, factory)
			if err != nil {
				return err
			}
			if res.Created {
				fmt.Fprintln(cmd.ErrOrStderr(), "Created a new vault. Write down this recovery phrase:")
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Mnemonic)
			return nil
		})
	},
}

// bip39Factory returns a MnemonicFactory producing BIP-39 phrases of the
// given word count.
func bip39Factory(words int) (vault.MnemonicFactory, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 15:
		bits = 160
	case 18:
		bits = 192
	case 21:
		bits = 224
	case 24:
		bits = 256
	default:
		return nil, fmt.Errorf("unsupported mnemonic length %d", words)
	}
	return func() (string, error) {
		entropy, err := bip39.NewEntropy(bits)
		if err != nil {
			return "", err
		}
		return bip39.NewMnemonic(entropy)
	}, nil
}

func init() {
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.Flags().IntVar(&unlockWords, "words", 24, "Word count for a newly created mnemonic (12, 15, 18, 21 or 24)")
	unlockCmd.Flags().BoolVar(&unlockUseTemp, "temp", false, "Use the device-generated temporary passphrase")
}
