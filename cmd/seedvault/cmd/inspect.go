package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/seedvault/crypto"
	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/storage"
)

// gcmTagSize is the authentication tag appended to every ciphertext.
const gcmTagSize = 16

type inspectResult struct {
	Source  string        `json:"source"`
	Version int           `json:"version"`
	Params  string        `json:"params"`
	Valid   bool          `json:"valid"`
	Checks  []checkResult `json:"checks"`
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "warn"
	Detail string `json:"detail,omitempty"`
}

func (r *inspectResult) pass(name, detail string) {
	r.Checks = append(r.Checks, checkResult{Name: name, Status: "pass", Detail: detail})
}

func (r *inspectResult) warn(name, detail string) {
	r.Checks = append(r.Checks, checkResult{Name: name, Status: "warn", Detail: detail})
}

func (r *inspectResult) fail(name, detail string) {
	r.Valid = false
	r.Checks = append(r.Checks, checkResult{Name: name, Status: "fail", Detail: detail})
}

// inspectRecord checks the shape of a stored record without decrypting
// it. defaults are the parameters new vaults would be written with.
func inspectRecord(rec storage.Record, defaults crypto.ScryptParams) inspectResult {
	params := crypto.ScryptParams{N: rec.N, R: rec.R, P: rec.P}
	result := inspectResult{
		Version: rec.Version,
		Params:  fmt.Sprintf("N=%d r=%d p=%d", params.N, params.R, params.P),
		Valid:   true,
	}

	if rec.Version == storage.CurrentBlobVersion {
		result.pass("schema_version", "")
	} else {
		result.fail("schema_version", fmt.Sprintf("version %d, expected %d", rec.Version, storage.CurrentBlobVersion))
	}

	switch err := crypto.ValidateScryptParams(params); {
	case err != nil:
		result.fail("scrypt_params", err.Error())
	case params.N < defaults.N || params.R < defaults.R || params.P < defaults.P:
		result.warn("scrypt_params", "weaker than current defaults; change the passphrase to upgrade")
	default:
		result.pass("scrypt_params", "")
	}

	checkLen := func(name, encoded string, want int, exact bool) {
		b, err := util.Base64Decode(encoded)
		switch {
		case err != nil:
			result.fail(name, "not valid base64")
		case exact && len(b) != want:
			result.fail(name, fmt.Sprintf("%d bytes, expected %d", len(b), want))
		case !exact && len(b) < want:
			result.fail(name, fmt.Sprintf("%d bytes, expected at least %d", len(b), want))
		default:
			result.pass(name, fmt.Sprintf("%d bytes", len(b)))
		}
	}
	checkLen("salt", rec.Salt, crypto.SaltSize, true)
	checkLen("iv", rec.IV, crypto.IVSize, true)
	checkLen("ciphertext", rec.Ciphertext, gcmTagSize+1, false)

	return result
}

func printHumanResult(w io.Writer, result inspectResult) {
	fmt.Fprintf(w, "Vault record: %s\n", result.Source)
	fmt.Fprintf(w, "Version: %d\n", result.Version)
	fmt.Fprintf(w, "Scrypt:  %s\n\n", result.Params)

	for _, c := range result.Checks {
		tag := "[PASS]"
		switch c.Status {
		case "fail":
			tag = "[FAIL]"
		case "warn":
			tag = "[WARN]"
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", tag, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "%s %s\n", tag, c.Name)
		}
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "Result: VALID")
		return
	}
	failures := 0
	for _, c := range result.Checks {
		if c.Status == "fail" {
			failures++
		}
	}
	fmt.Fprintf(w, "Result: INVALID (%d error(s))\n", failures)
}

var inspectJSONOutput bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [record.json]",
	Short: "Check a stored vault record without decrypting it",
	Long: `Reads the vault record for --user from the configured store, or a JSON
record file if one is given, and checks its schema version, scrypt
parameters and field lengths. No passphrase or pepper is needed; whether
the record decrypts can only be learned by unlocking it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSONOutput, "json", false, "Output results as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	var (
		rec    storage.Record
		source string
	)
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to parse record: %w", err)
		}
		source = args[0]
	} else {
		if userID == "" {
			return fmt.Errorf("--user or a record file is required")
		}
		repo, closeRepo, err := openRepository(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer closeRepo()
		blob, err := repo.ReadBlob(cmd.Context(), userID, cfg.Vault.Name)
		if err != nil {
			return fmt.Errorf("failed to read vault: %w", err)
		}
		rec = blob.Record()
		source = fmt.Sprintf("%s/%s (%s)", userID, cfg.Vault.Name, cfg.Storage.Driver)
	}

	result := inspectRecord(rec, cfg.Vault.Scrypt)
	result.Source = source

	if inspectJSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printHumanResult(cmd.OutOrStdout(), result)
	}
	if !result.Valid {
		return fmt.Errorf("vault record is invalid")
	}
	return nil
}
