package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/pepper"
)

var (
	serverAddr       string
	serverSecretFile string
)

var pepperServerCmd = &cobra.Command{
	Use:   "pepper-server",
	Short: "Serve per-user peppers to authenticated clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverAddr != "" {
			cfg.Server.Addr = serverAddr
		}
		if serverSecretFile != "" {
			cfg.Server.SecretFile = serverSecretFile
		}

		secret, err := readServerSecret(cfg.Server.SecretFile)
		if err != nil {
			return err
		}
		tokens, err := parseTokens(cfg.Server.Tokens)
		if err != nil {
			return err
		}
		ps, err := pepper.NewServer(secret, pepper.StaticTokens(tokens), pepper.WithServerLogger(logger))
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/", ps.Router())

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := cfg.Server.TLSCert != "" && cfg.Server.TLSKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else {
			logger.Warn("serving peppers without TLS; only do this behind a TLS-terminating proxy")
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting pepper server on %s (%d clients)...\n", cfg.Server.Addr, len(tokens))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// readServerSecret reads a base64-encoded secret from path.
func readServerSecret(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("a server secret file is required (--secret-file or server.secret_file)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server secret: %w", err)
	}
	defer util.WipeBytes(data)
	secret, err := util.Base64Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("server secret is not valid base64: %w", err)
	}
	return secret, nil
}

// parseTokens parses "token=userID" entries.
func parseTokens(entries []string) (map[string]string, error) {
	tokens := make(map[string]string, len(entries))
	for _, e := range entries {
		token, user, ok := strings.Cut(e, "=")
		if !ok || token == "" || user == "" {
			return nil, fmt.Errorf("invalid token entry %q, want token=user", e)
		}
		if _, dup := tokens[token]; dup {
			return nil, fmt.Errorf("duplicate token for user %q", user)
		}
		tokens[token] = user
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("at least one client token is required (server.tokens)")
	}
	return tokens, nil
}

func init() {
	rootCmd.AddCommand(pepperServerCmd)
	pepperServerCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (default from config)")
	pepperServerCmd.Flags().StringVar(&serverSecretFile, "secret-file", "", "File holding the base64 server secret")
}
