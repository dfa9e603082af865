package cli

import (
	"fmt"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a seeded user. Development use only.
//
//	token, _, err := cli.GenerateUserToken(secret,
//	    "550e8400-e29b-41d4-a716-446655440001", "DRIVER", 2*time.Hour)
func GenerateUserToken(secret, userID, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	mgr := jwt.NewManager(secret, ttl)
	token, claims, err := mgr.IssueUserToken(userID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}
	return token, *claims, nil
}
