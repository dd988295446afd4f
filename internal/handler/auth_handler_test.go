package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-starter/internal/config"
	"go-auth-starter/internal/handler"
	"go-auth-starter/internal/middleware"
	"go-auth-starter/internal/model"
	"go-auth-starter/internal/repository"
	"go-auth-starter/internal/router"
	"go-auth-starter/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.AuthService, *repository.MockUserStore) {
	t.Helper()

	store := repository.NewMockUserStore()
	tokens := service.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	authService := service.NewAuthService(store, tokens, nil, bcrypt.MinCost)

	cfg := &config.Config{
		Env:              "development",
		ServerPort:       "8080",
		RequestTimeout:   30 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	cookieWriter := handler.NewCookieWriter(15*time.Minute, 24*time.Hour, false)

	mux := router.New(cfg, authMiddleware, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, cookieWriter),
		User:   handler.NewUserHandler(authService),
		Health: handler.Health(nil),
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, authService, store
}

// newClient returns an http.Client with a cookie jar, mirroring how a browser
// carries the auth cookies between calls.
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar := newCookieJar()
	return &http.Client{Jar: jar}
}

type cookieJar struct {
	cookies map[string]*http.Cookie
}

func newCookieJar() *cookieJar {
	return &cookieJar{cookies: map[string]*http.Cookie{}}
}

func (j *cookieJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge < 0 {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = c
	}
}

func (j *cookieJar) Cookies(_ *url.URL) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	return out
}

func postJSON(t *testing.T, client *http.Client, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func post(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()

	resp, err := client.Post(url, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()

	resp, err := client.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func register(t *testing.T, client *http.Client, serverURL string, email string, password string) model.AuthResponse {
	t.Helper()

	resp := postJSON(t, client, serverURL+"/auth/register", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var parsed model.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed
}

func TestRegisterSetsCookiesAndReturnsTokens(t *testing.T) {
	server, _, store := newTestServer(t)
	client := newClient(t)

	parsed := register(t, client, server.URL, "a@x.com", "secret-password")
	require.Equal(t, "a@x.com", parsed.User.Email)
	require.Equal(t, model.RoleUser, parsed.User.Role)
	require.NotEmpty(t, parsed.Tokens.AccessToken)
	require.NotEmpty(t, parsed.Tokens.RefreshToken)

	stored, ok := store.Stored(parsed.User.ID)
	require.True(t, ok)
	require.NotEqual(t, "secret-password", stored.PasswordHash)

	jar := client.Jar.(*cookieJar)
	access, ok := jar.cookies["access_token"]
	require.True(t, ok)
	require.True(t, access.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	_, ok = jar.cookies["refresh_token"]
	require.True(t, ok)
}

func TestRegisterDuplicateEmailReturnsConflict(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := newClient(t)

	register(t, client, server.URL, "a@x.com", "secret-password")

	resp := postJSON(t, client, server.URL+"/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "other-password",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var envelope model.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, http.StatusConflict, envelope.StatusCode)
	require.Equal(t, "/auth/register", envelope.Path)
	require.NotEmpty(t, envelope.Message)
	require.False(t, envelope.Timestamp.IsZero())
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := newClient(t)

	resp := postJSON(t, client, server.URL+"/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, client, server.URL+"/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginWrongPasswordSetsNoCookies(t *testing.T) {
	server, _, _ := newTestServer(t)

	register(t, newClient(t), server.URL, "a@x.com", "secret-password")

	client := newClient(t)
	resp := postJSON(t, client, server.URL+"/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, resp.Cookies())
	require.Empty(t, client.Jar.(*cookieJar).cookies)
}

func TestProfileWithAccessCookie(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := newClient(t)

	register(t, client, server.URL, "a@x.com", "secret-password")

	resp := get(t, client, server.URL+"/auth/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user model.PublicUser
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, "a@x.com", user.Email)
}

func TestProfileWithoutCookieIsUnauthorized(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := get(t, newClient(t), server.URL+"/auth/profile")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileRejectsForeignSignature(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := newClient(t)

	register(t, client, server.URL, "a@x.com", "secret-password")

	// Forge a token with the wrong secret; the guard must reject it.
	forged := service.NewTokenService("wrong-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	pair, err := forged.IssuePair(model.User{ID: "some-id", Email: "a@x.com", Role: model.RoleUser})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/profile", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: pair.AccessToken})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRotation(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := newClient(t)

	register(t, client, server.URL, "a@x.com", "secret-password")

	jar := client.Jar.(*cookieJar)
	oldRefresh := jar.cookies["refresh_token"].Value

	resp := post(t, client, server.URL+"/auth/refresh")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair model.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEqual(t, oldRefresh, pair.RefreshToken)
	require.Equal(t, pair.RefreshToken, jar.cookies["refresh_token"].Value)

	// Replaying the pre-rotation refresh token fails.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: oldRefresh})

	replay, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = replay.Body.Close() })
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestLogoutClearsCookiesAndKillsRefresh(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := newClient(t)

	register(t, client, server.URL, "a@x.com", "secret-password")

	jar := client.Jar.(*cookieJar)
	refreshBeforeLogout := jar.cookies["refresh_token"].Value

	resp := post(t, client, server.URL+"/auth/logout")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, jar.cookies)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshBeforeLogout})

	replay, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = replay.Body.Close() })
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	server, authService, store := newTestServer(t)
	client := newClient(t)

	parsed := register(t, client, server.URL, "a@x.com", "secret-password")

	resp := get(t, client, server.URL+"/users/")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Promote and retry: guards read the stored role, so no new login is
	// needed.
	require.NoError(t, authService.ChangeRole(context.Background(), parsed.User.ID, model.RoleAdmin))

	resp = get(t, client, server.URL+"/users/")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var users []model.PublicUser
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 1)

	stored, ok := store.Stored(parsed.User.ID)
	require.True(t, ok)
	require.Equal(t, model.RoleAdmin, stored.Role)
}

func TestAdminDeactivationKillsSessions(t *testing.T) {
	server, authService, _ := newTestServer(t)

	adminClient := newClient(t)
	admin := register(t, adminClient, server.URL, "admin@x.com", "secret-password")
	require.NoError(t, authService.ChangeRole(context.Background(), admin.User.ID, model.RoleAdmin))

	userClient := newClient(t)
	user := register(t, userClient, server.URL, "user@x.com", "secret-password")

	req, err := http.NewRequest(http.MethodPut, server.URL+"/users/"+user.User.ID+"/deactivate", nil)
	require.NoError(t, err)
	for _, c := range adminClient.Jar.Cookies(nil) {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The deactivated user's still-unexpired access token is now rejected.
	profileResp := get(t, userClient, server.URL+"/auth/profile")
	require.Equal(t, http.StatusUnauthorized, profileResp.StatusCode)

	refreshResp := post(t, userClient, server.URL+"/auth/refresh")
	require.Equal(t, http.StatusUnauthorized, refreshResp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := get(t, newClient(t), server.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := get(t, newClient(t), server.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
