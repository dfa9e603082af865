package jwt

import (
	"encoding/json"
	"errors"
	"strings"

	"transport-connect/internal/domain/user"
)

var (
	ErrBadAuthMsg   = errors.New("invalid auth message")
	ErrBadTokenWrap = errors.New("token must be 'Bearer <token>'")
)

// ClientAuthMessage is what clients send first over WS when the upgrade
// request carried no credential:
//
//	{ "type":"auth", "token":"Bearer <jwt>" }
type ClientAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ValidateWSAuth parses the first auth frame, validates the JWT, and enforces RBAC.
func ValidateWSAuth(frame []byte, mgr *Manager, allowedRoles ...user.Role) (*Claims, error) {
	var msg ClientAuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, ErrBadAuthMsg
	}
	if strings.ToLower(strings.TrimSpace(msg.Type)) != "auth" {
		return nil, ErrBadAuthMsg
	}

	raw, err := stripBearer(strings.TrimSpace(msg.Token))
	if err != nil {
		return nil, ErrBadTokenWrap
	}

	claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}
	if err := RoleAllowed(claims, allowedRoles...); err != nil {
		return nil, err
	}
	return claims, nil
}
