package pepper

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmcleod/seedvault/internal/util"
)

// MinServerSecretSize is the minimum length of the server master secret.
const MinServerSecretSize = 32

var serverInfo = []byte("seedvault:pepper:v1")

// ErrUnauthenticated is returned by a TokenVerifier for unknown tokens.
var ErrUnauthenticated = errors.New("pepper: unauthenticated")

// TokenVerifier maps a bearer token to the user it authenticates.
type TokenVerifier func(ctx context.Context, token string) (userID string, err error)

// StaticTokens returns a TokenVerifier backed by a token -> user ID table.
func StaticTokens(tokens map[string]string) TokenVerifier {
	table := make(map[string]string, len(tokens))
	for k, v := range tokens {
		table[k] = v
	}
	return func(_ context.Context, token string) (string, error) {
		for candidate, userID := range table {
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
				return userID, nil
			}
		}
		return "", ErrUnauthenticated
	}
}

// Server issues per-user peppers. Each pepper is HKDF(secret, userID), so
// users get stable and unrelated values without any per-user storage.
type Server struct {
	secret  *memguard.Enclave
	verify  TokenVerifier
	logger  *slog.Logger
	limiter *failureLimiter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the structured logger for issuance events.
// If not set, a default JSON logger writing to stderr is used.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server. secret is copied into an enclave and the
// caller's slice is wiped.
func NewServer(secret []byte, verify TokenVerifier, opts ...ServerOption) (*Server, error) {
	if len(secret) < MinServerSecretSize {
		return nil, fmt.Errorf("pepper server secret must be at least %d bytes", MinServerSecretSize)
	}
	if verify == nil {
		return nil, fmt.Errorf("pepper server requires a token verifier")
	}
	s := &Server{
		secret:  memguard.NewEnclave(secret),
		verify:  verify,
		limiter: newFailureLimiter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return s, nil
}

// Router returns a chi.Router serving the pepper endpoint.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Use(securityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK")) //nolint:errcheck
	})
	r.Get(PepperPath, s.handlePepper)
	return r
}

// PepperFor derives the pepper for userID.
func (s *Server) PepperFor(userID string) ([]byte, error) {
	buf, err := s.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("opening server secret: %w", err)
	}
	defer buf.Destroy()
	return util.HKDF(buf.Bytes(), []byte(userID), serverInfo)
}

func (s *Server) handlePepper(w http.ResponseWriter, r *http.Request) {
	client := clientIP(r)
	if blocked, retryAfter := s.limiter.check(client); blocked {
		writeRateLimited(w, retryAfter)
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	userID, err := s.verify(r.Context(), token)
	if err != nil || userID == "" {
		s.limiter.recordFailure(client)
		s.logger.Warn("pepper request rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	s.limiter.recordSuccess(client)

	pepper, err := s.PepperFor(userID)
	if err != nil {
		s.logger.Error("pepper derivation failed", slog.String("user_id", userID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "pepper unavailable")
		return
	}
	defer util.WipeBytes(pepper)

	s.logger.Info("pepper issued", slog.String("user_id", userID))
	writeJSON(w, http.StatusOK, PepperResponse{Pepper: util.Base64Encode(pepper)})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
