package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/post-analyzer/internal/config"
	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
)

const (
	defaultLeeway = 30 * time.Second

	// Development headers honored only when no JWT secret is configured
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// Claims are the JWT claims issued at login
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID string
	Role   string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached by the auth middleware
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator issues and verifies HS256 bearer tokens. With an empty secret
// it trusts the X-User-ID and X-User-Role headers instead.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuthenticator creates an authenticator from the auth config
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		parser: jwt.NewParser(opts...),
		now:    time.Now,
	}
}

// Enabled reports whether bearer tokens are required
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs a token for userID carrying role
func (a *Authenticator) IssueToken(userID, role string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, errors.New("token signing is disabled: no JWT secret configured")
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a signed token
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}
	return claims, nil
}

// Middleware attaches the caller's Principal to the request context or
// answers 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.authenticate(r)
		if err != nil {
			respondError(w, r, err)
			return
		}

		ctx := withPrincipal(r.Context(), principal)
		logger := logging.FromContext(ctx).WithField(logging.FieldUserID, principal.UserID)
		ctx = logging.WithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (Principal, error) {
	if !a.Enabled() {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			return Principal{}, apperrors.NewUnauthorizedError("missing " + headerUserID + " header")
		}
		return Principal{UserID: userID, Role: strings.TrimSpace(r.Header.Get(headerUserRole))}, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, apperrors.NewUnauthorizedError("missing bearer token")
	}
	scheme, tokenString, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
		return Principal{}, apperrors.NewUnauthorizedError("malformed authorization header")
	}

	claims, err := a.Verify(strings.TrimSpace(tokenString))
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Rejected bearer token")
		return Principal{}, apperrors.NewUnauthorizedError("invalid bearer token")
	}
	return Principal{UserID: claims.Subject, Role: claims.Role}, nil
}

// RequireRole answers 403 unless the caller holds one of roles. It must run
// after Authenticator.Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				respondError(w, r, apperrors.NewUnauthorizedError("authentication required"))
				return
			}
			for _, role := range roles {
				if role != "" && principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, r, apperrors.NewForbiddenError("insufficient role"))
		})
	}
}
