package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/seedvault/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	dataDir    string
	configFile string
	userID     string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "seedvault",
	Short: "seedvault protects a wallet mnemonic with a passphrase and a server pepper",
	Long: `seedvault encrypts a wallet recovery phrase under a key derived from your
passphrase (scrypt) and a server-held pepper (HKDF), and stores only the
ciphertext and its derivation parameters.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configFile != "" {
			cfg, err = config.LoadFile(configFile, dataDir, false)
		} else {
			cfg, err = config.Load(dataDir)
		}
		if err != nil {
			return err
		}
		logger = cfg.Log.Logger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", config.DefaultDir(), "Directory for config and local data")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("SEEDVAULT_USER"), "User ID owning the vault")
	rootCmd.Version = Version
}
