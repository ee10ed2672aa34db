package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"farmchain/observability/logging"
)

// AuthConfig describes the HMAC signed bearer tokens accepted on admin routes.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ScopeClaim string
	AdminScope string
	ClockSkew  time.Duration
}

type contextKey string

const (
	contextKeyAdmin   contextKey = "farmd.admin"
	contextKeyRequest contextKey = "farmd.request"
)

// Authenticator validates admin bearer tokens. The token subject must be the
// hex or bech32 address the admin acts as.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthenticator constructs an authenticator, applying defaults for the
// scope claim and clock skew.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.AdminScope == "" {
		cfg.AdminScope = "farm:admin"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{
		cfg:    cfg,
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		logger: logger,
		now:    time.Now,
	}
}

// RequireAdmin rejects requests without a valid admin token and stores the
// token subject as the acting admin.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString := extractBearer(header)
		if tokenString == "" {
			writeJSONError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		claims, err := a.parseToken(tokenString)
		if err != nil {
			a.logger.Warn("admin token rejected", "error", err, logging.MaskField("authorization", header))
			writeJSONError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		if err := validateClaims(claims, a.cfg.Issuer, a.cfg.Audience); err != nil {
			a.logger.Warn("admin claims rejected", "error", err)
			writeJSONError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		if !hasScope(extractScopes(claims, a.cfg.ScopeClaim), a.cfg.AdminScope) {
			writeJSONError(w, http.StatusForbidden, errors.New("insufficient scope"))
			return
		}
		subject, _ := claims["sub"].(string)
		admin, err := parseAddress(subject)
		if err != nil {
			writeJSONError(w, http.StatusForbidden, errors.New("token subject is not an address"))
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyAdmin, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func validateClaims(claims jwt.MapClaims, issuer, audience string) error {
	if issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != issuer {
			return errors.New("issuer mismatch")
		}
	}
	if audience != "" {
		switch val := claims["aud"].(type) {
		case string:
			if val != audience {
				return errors.New("audience mismatch")
			}
		case []interface{}:
			for _, entry := range val {
				if s, ok := entry.(string); ok && s == audience {
					return nil
				}
			}
			return errors.New("audience mismatch")
		default:
			return errors.New("audience missing")
		}
	}
	return nil
}

func extractScopes(claims jwt.MapClaims, scopeClaim string) []string {
	switch v := claims[scopeClaim].(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasScope(scopes []string, required string) bool {
	for _, scope := range scopes {
		if scope == required {
			return true
		}
	}
	return false
}

func extractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func adminFrom(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(contextKeyAdmin).(common.Address)
	return addr, ok
}
