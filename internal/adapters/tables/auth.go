package tables

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"mobiletables/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

// ZumoAuthHeader carries the app-service token issued to mobile clients.
const ZumoAuthHeader = "X-ZUMO-AUTH"

// AuthConfig controls token validation for the table routes. Validation is
// enabled only when Hostname is set; without it the service runs anonymously.
type AuthConfig struct {
	Hostname       string   `env:"MOBILETABLES_HOSTNAME"`
	SigningKey     string   `env:"MOBILETABLES_SIGNING_KEY"`
	ValidAudiences []string `env:"MOBILETABLES_VALID_AUDIENCES" envSeparator:","`
	ValidIssuers   []string `env:"MOBILETABLES_VALID_ISSUERS" envSeparator:","`
}

// Enabled reports whether requests must carry a token.
func (c AuthConfig) Enabled() bool {
	return strings.TrimSpace(c.Hostname) != ""
}

// Authenticator validates HS256 tokens against the configured key and
// issuer/audience allow-lists.
type Authenticator struct {
	key       []byte
	audiences []string
	issuers   []string
	now       func() time.Time
	logger    core.Logger
}

// NewAuthenticator validates cfg. Empty allow-lists default to
// "https://<hostname>/".
func NewAuthenticator(cfg AuthConfig, logger core.Logger) (*Authenticator, error) {
	if !cfg.Enabled() {
		return nil, errors.New("authentication requires a hostname")
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, errors.New("MOBILETABLES_SIGNING_KEY is required when MOBILETABLES_HOSTNAME is set")
	}
	if logger == nil {
		logger = core.NopLogger()
	}
	fallback := fmt.Sprintf("https://%s/", strings.TrimSpace(cfg.Hostname))
	return &Authenticator{
		key:       []byte(cfg.SigningKey),
		audiences: allowList(cfg.ValidAudiences, fallback),
		issuers:   allowList(cfg.ValidIssuers, fallback),
		now:       time.Now,
		logger:    logger,
	}, nil
}

func allowList(values []string, fallback string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = append(out, fallback)
	}
	return out
}

// Validate parses token and returns its subject.
func (a *Authenticator) Validate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !slices.Contains(a.issuers, claims.Issuer) {
		return "", fmt.Errorf("issuer %q not allowed", claims.Issuer)
	}
	if !slices.ContainsFunc(claims.Audience, func(aud string) bool {
		return slices.Contains(a.audiences, aud)
	}) {
		return "", errors.New("audience not allowed")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid token with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication token required")
			return
		}
		subject, err := a.Validate(token)
		if err != nil {
			a.logger.Warn("rejected table request", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "invalid authentication token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, subject)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(ZumoAuthHeader)); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

type userKey struct{}

// UserFromContext returns the token subject of an authenticated request.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok
}
