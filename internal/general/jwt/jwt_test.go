package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"transport-connect/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	mgr := NewManager("secret", time.Hour)
	raw, issued, err := mgr.IssueUserToken("u1", user.RoleShipper)
	require.NoError(t, err)
	assert.Equal(t, Issuer, issued.Issuer)

	claims, err := mgr.ParseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, user.Identity{ID: "u1", Role: user.RoleShipper}, claims.Identity())

	_, err = NewManager("other", time.Hour).ParseAndValidate(raw)
	assert.Error(t, err)

	_, _, err = mgr.IssueUserToken("u1", user.Role("PASSENGER"))
	assert.Error(t, err)
}

func TestExpiredAndForeignTokensRejected(t *testing.T) {
	mgr := NewManager("secret", -time.Minute)
	raw, _, err := mgr.IssueUserToken("u1", user.RoleDriver)
	require.NoError(t, err)
	_, err = mgr.ParseAndValidate(raw)
	assert.Error(t, err)

	foreign := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, &Claims{
		Role: user.RoleDriver,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "u1",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewManager("secret", time.Hour).ParseAndValidate(signed)
	assert.Error(t, err)
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err := FromRequest(r)
	assert.ErrorIs(t, err, ErrNoCredential)

	r.Header.Set("Authorization", "Bearer abc")
	tok, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, err = FromRequest(r)
	assert.ErrorIs(t, err, ErrBadAuthScheme)

	q := httptest.NewRequest(http.MethodGet, "/ws?token=xyz", nil)
	tok, err = FromRequest(q)
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("secret", time.Hour)
	raw, _, err := mgr.IssueUserToken("u2", user.RoleDriver)
	require.NoError(t, err)

	claims, err := ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+raw+`"}`), mgr)
	require.NoError(t, err)
	assert.Equal(t, "u2", claims.Subject)

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"`+raw+`"}`), mgr)
	assert.ErrorIs(t, err, ErrBadTokenWrap)

	_, err = ValidateWSAuth([]byte(`{"type":"hello"}`), mgr)
	assert.ErrorIs(t, err, ErrBadAuthMsg)

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+raw+`"}`), mgr, user.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleForbidden)
}

func TestMiddleware(t *testing.T) {
	mgr := NewManager("secret", time.Hour)
	raw, _, _ := mgr.IssueUserToken("u3", user.RoleShipper)

	var seen *Claims
	h := AuthMiddlewareFunc(mgr, user.RoleAdmin, user.RoleShipper)(func(w http.ResponseWriter, r *http.Request) {
		seen = RequireClaims(r)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	h(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req.Header.Set("Authorization", "Bearer "+raw)
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u3", seen.Subject)

	driverTok, _, _ := mgr.IssueUserToken("u4", user.RoleDriver)
	rec = httptest.NewRecorder()
	req.Header.Set("Authorization", "Bearer "+driverTok)
	h(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
