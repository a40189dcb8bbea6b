// Package guard authenticates HTTP callers against a pre-shared key
// before any request reaches the MCP handlers or the credential store.
package guard

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/calmcp/calmcp/internal/logging"
)

const (
	headerAPIKey        = "X-API-Key"
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

// ErrRejected marks a request that did not present the server key.
var ErrRejected = errors.New("request rejected: missing or invalid API key")

// Observer is notified of authentication outcomes.
type Observer interface {
	ObserveAuth(outcome string)
}

// Guard validates the pre-shared server key on incoming requests.
type Guard struct {
	apiKey   []byte
	logger   *slog.Logger
	observer Observer
}

func New(apiKey string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		apiKey: []byte(apiKey),
		logger: logging.WithComponent(logger, "guard"),
	}
}

// SetObserver attaches an authentication outcome observer.
func (g *Guard) SetObserver(obs Observer) {
	g.observer = obs
}

// Authenticate checks that the request carries the pre-shared key,
// either as X-API-Key or as a bearer token, returning ErrRejected
// otherwise. Comparison is constant time so response timing leaks
// nothing about the key.
func (g *Guard) Authenticate(r *http.Request) error {
	candidate := extractKey(r)
	if candidate == "" {
		return ErrRejected
	}
	if subtle.ConstantTimeCompare([]byte(candidate), g.apiKey) != 1 {
		return ErrRejected
	}
	return nil
}

// Middleware rejects unauthenticated requests with a JSON 401 before
// the next handler runs. Health and discovery endpoints pass through
// so probes and clients can reach them without the key.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if err := g.Authenticate(r); err != nil {
			g.observe("rejected")
			g.logger.Warn("request rejected",
				logging.Operation("authenticate"),
				logging.Err(err),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeUnauthorized(w)
			return
		}

		g.observe("accepted")
		next.ServeHTTP(w, r)
	})
}

func extractKey(r *http.Request) string {
	if key := r.Header.Get(headerAPIKey); key != "" {
		return key
	}
	auth := r.Header.Get(headerAuthorization)
	if strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimPrefix(auth, bearerPrefix)
	}
	return ""
}

func isPublicPath(path string) bool {
	switch {
	case path == "/healthz", path == "/readyz":
		return true
	case strings.HasPrefix(path, "/.well-known/"):
		return true
	}
	return false
}

func (g *Guard) observe(outcome string) {
	if g.observer != nil {
		g.observer.ObserveAuth(outcome)
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
