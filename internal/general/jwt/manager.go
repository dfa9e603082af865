package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"transport-connect/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCredential       = errors.New("bearer credential missing")
	ErrBadAuthScheme      = errors.New("authorization must start with Bearer")
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
	ErrRoleForbidden      = errors.New("role not allowed")
	ErrMissingSubject     = errors.New("token has no subject")
)

// Manager handles JWT creation and validation.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewManager creates a token manager.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}
	return &Manager{secret: []byte(s), accessTTL: accessTTL}
}

// IssueUserToken returns a signed access token.
func (m *Manager) IssueUserToken(userID string, role user.Role) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("invalid role: %s", role)
	}
	if strings.TrimSpace(userID) == "" {
		return "", nil, ErrMissingSubject
	}
	claims := NewUserClaims(userID, role, m.accessTTL)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	return signed, claims, err
}

// ParseAndValidate verifies signature, issuer and time claims.
func (m *Manager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(Issuer),
		jwtlib.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if !claims.Role.Valid() {
		return nil, user.ErrInvalidRole
	}
	return claims, nil
}

// FromRequest extracts a bearer token from the Authorization header, or from
// the "token" / "Authorization" query parameters browsers must use for sockets.
// ErrNoCredential means none was supplied at all.
func FromRequest(r *http.Request) (string, error) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		return stripBearer(h)
	}
	q := r.URL.Query()
	for _, key := range []string{"token", "Authorization"} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			if raw, err := stripBearer(v); err == nil {
				return raw, nil
			}
			return v, nil // bare token
		}
	}
	return "", ErrNoCredential
}

func stripBearer(v string) (string, error) {
	scheme, raw, ok := strings.Cut(v, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrBadAuthScheme
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoCredential
	}
	return raw, nil
}

// RoleAllowed asserts the claims' role is one of the allowed. No roles means any.
func RoleAllowed(cl *Claims, allowed ...user.Role) error {
	if len(allowed) == 0 || slices.Contains(allowed, cl.Role) {
		return nil
	}
	return ErrRoleForbidden
}

type ctxKey string

const claimsCtxKey ctxKey = "jwtClaims"

// InjectClaims adds JWT claims to the context.
func InjectClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// FromContext extracts JWT claims from the context.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*Claims)
	return c, ok
}
