package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbinlabs/mining-rental/internal/utils"
)

const testSecret = "unit-test-secret"

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTAuth(testSecret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec, _ := runJWT(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_003")
}

func TestJWTAuthRejectsMalformedToken(t *testing.T) {
	rec, _ := runJWT(t, "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_003")
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("another-secret", "u1", "a@b.c", "user", 15)
	require.NoError(t, err)

	rec, _ := runJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthInjectsClaims(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "u1", "miner@example.com", "admin", 15)
	require.NoError(t, err)

	rec, c := runJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", c.Get("user_id"))
	assert.Equal(t, "miner@example.com", c.Get("email"))
	assert.Equal(t, "admin", c.Get("role"))
}

func TestRequireRoleForbidsOutsiders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", "user")

	h := RequireRole("admin")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_004")
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", "admin")

	h := RequireRole("user", "admin")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleForbidsWhenUnauthenticated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireRole("admin")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
