package jwt

import (
	"time"

	"transport-connect/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every token this service mints and required on validation.
const Issuer = "transport-connect"

// Claims defines our canonical JWT claims payload.
type Claims struct {
	Role user.Role `json:"role"` // DRIVER | SHIPPER | ADMIN
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims constructs end-user claims.
func NewUserClaims(userID string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now.Add(-30 * time.Second)),
		},
	}
}

// Identity converts validated claims into the actor the services work with.
func (c *Claims) Identity() user.Identity {
	return user.Identity{ID: c.Subject, Role: c.Role}
}
