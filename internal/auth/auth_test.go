package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testTokens() TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "comicshelf-test",
		Duration: time.Hour,
	}
}

func TestSignAndParse(t *testing.T) {
	ts := testTokens()

	token, exp, err := ts.Sign("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, exp.After(time.Now()))

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	require.Equal(t, "comicshelf-test", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	ts := testTokens()
	token, _, err := ts.Sign("admin")
	require.NoError(t, err)

	other := testTokens()
	other.Secret = []byte("different-secret")
	_, err = other.Parse(token)
	require.Error(t, err)
}

func authRouter(t *testing.T) (*gin.Engine, TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := testTokens()
	router := gin.New()
	protected := router.Group("/admin")
	protected.Use(Middleware(ts))
	protected.GET("/ping", func(c *gin.Context) {
		claims := c.MustGet(CtxClaimsKey).(*Claims)
		c.JSON(http.StatusOK, gin.H{"user": claims.Username})
	})
	return router, ts
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	router, ts := authRouter(t)

	token, _, err := ts.Sign("admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "admin")
}

func TestMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	router, _ := authRouter(t)

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer not-a-token",
		"scheme":  "Basic abc123",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func loginRouter(t *testing.T, passwordHash string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	h := NewHandler(testTokens(), "admin", passwordHash)
	h.RegisterRoutes(router.Group("/auth"))
	return router
}

func postLogin(router *gin.Engine, username, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(gin.H{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	router := loginRouter(t, string(hash))

	w := postLogin(router, "admin", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := testTokens().Parse(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	router := loginRouter(t, string(hash))

	require.Equal(t, http.StatusUnauthorized, postLogin(router, "admin", "wrong").Code)
	require.Equal(t, http.StatusUnauthorized, postLogin(router, "intruder", "s3cret").Code)
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	router := loginRouter(t, "")
	require.Equal(t, http.StatusServiceUnavailable, postLogin(router, "admin", "anything").Code)
}
