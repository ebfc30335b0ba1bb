package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"finsd/internal/repository/sqlite"
	"finsd/internal/service"
	"finsd/internal/session"
	"finsd/internal/verification"
	"finsd/web"
)

type captureSender struct {
	to   string
	code int
	sent int
}

func (c *captureSender) SendVerificationCode(_ context.Context, to string, code int) error {
	c.to = to
	c.code = code
	c.sent++
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *captureSender) {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	sender := &captureSender{}
	authSvc := service.NewAuthService(repo, verification.NewRegistry(verification.Options{}), sender)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetHTMLTemplate(web.Templates())

	handler := NewHandler(authSvc, session.NewStore(), "test-secret", time.Hour, logger)
	handler.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, sender
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postForm(t *testing.T, client *http.Client, rawURL string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := client.PostForm(rawURL, form)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func get(t *testing.T, client *http.Client, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(rawURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func TestFullRegistrationFlow(t *testing.T) {
	srv, sender := newTestServer(t)
	client := newClient(t)

	// anonymous client lands on the login page
	resp, _ := get(t, client, srv.URL+"/")
	require.Equal(t, "/login", resp.Request.URL.Path)

	// register
	resp, body := postForm(t, client, srv.URL+"/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"p1"},
		"confirm_password": {"p1"},
	})
	require.Equal(t, "/verify", resp.Request.URL.Path)
	require.Contains(t, body, "alice@example.com")
	require.Equal(t, 1, sender.sent)
	require.Equal(t, "alice@example.com", sender.to)

	// not logged in yet
	resp, _ = get(t, client, srv.URL+"/welcome")
	require.Equal(t, "/login", resp.Request.URL.Path)

	// wrong code: stays on the verify page, retry allowed
	resp, body = postForm(t, client, srv.URL+"/verify", url.Values{"code": {"000000"}})
	require.Equal(t, "/verify", resp.Request.URL.Path)
	require.Contains(t, body, "Invalid verification code.")

	// right code: account created, on to login
	resp, body = postForm(t, client, srv.URL+"/verify", url.Values{"code": {strconv.Itoa(sender.code)}})
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, "Verification successful, you can now login.")

	// pending state is gone: verify now bounces to register
	resp, _ = get(t, client, srv.URL+"/verify")
	require.Equal(t, "/register", resp.Request.URL.Path)

	// wrong password rejected
	resp, body = postForm(t, client, srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, "Invalid email or password.")

	// welcome still refuses: failed login sets no identity
	resp, _ = get(t, client, srv.URL+"/welcome")
	require.Equal(t, "/login", resp.Request.URL.Path)

	// correct login
	resp, body = postForm(t, client, srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"p1"},
	})
	require.Equal(t, "/welcome", resp.Request.URL.Path)
	require.Contains(t, body, "alice@example.com")

	// identity check is idempotent
	for i := 0; i < 3; i++ {
		resp, body = get(t, client, srv.URL+"/welcome")
		require.Equal(t, "/welcome", resp.Request.URL.Path)
		require.Contains(t, body, "alice@example.com")
	}

	// root now routes to welcome
	resp, _ = get(t, client, srv.URL+"/")
	require.Equal(t, "/welcome", resp.Request.URL.Path)

	// logout drops the identity
	resp, _ = postForm(t, client, srv.URL+"/logout", url.Values{})
	require.Equal(t, "/login", resp.Request.URL.Path)
	resp, _ = get(t, client, srv.URL+"/welcome")
	require.Equal(t, "/login", resp.Request.URL.Path)
}

func TestRegister_ValidationErrors(t *testing.T) {
	srv, sender := newTestServer(t)

	cases := []struct {
		name string
		form url.Values
		want string
	}{
		{
			"missing username",
			url.Values{"email": {"a@example.com"}, "password": {"p"}, "confirm_password": {"p"}},
			"is required.",
		},
		{
			"malformed email",
			url.Values{"username": {"a"}, "email": {"not-an-email"}, "password": {"p"}, "confirm_password": {"p"}},
			"Invalid email address.",
		},
		{
			"password mismatch",
			url.Values{"username": {"a"}, "email": {"a@example.com"}, "password": {"p1"}, "confirm_password": {"p2"}},
			"Passwords do not match.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(t)
			resp, body := postForm(t, client, srv.URL+"/register", tc.form)
			require.Equal(t, "/register", resp.Request.URL.Path)
			require.Contains(t, body, tc.want)
		})
	}
	require.Equal(t, 0, sender.sent)
}

func TestRegister_Conflict(t *testing.T) {
	srv, sender := newTestServer(t)

	// first registrant completes the flow
	first := newClient(t)
	postForm(t, first, srv.URL+"/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"p1"},
		"confirm_password": {"p1"},
	})
	postForm(t, first, srv.URL+"/verify", url.Values{"code": {strconv.Itoa(sender.code)}})

	// second registrant reuses the email
	second := newClient(t)
	resp, body := postForm(t, second, srv.URL+"/register", url.Values{
		"username":         {"bob"},
		"email":            {"alice@example.com"},
		"password":         {"p2"},
		"confirm_password": {"p2"},
	})
	require.Equal(t, "/register", resp.Request.URL.Path)
	require.Contains(t, body, "Email or username already exists.")
	require.Equal(t, 1, sender.sent)
}

func TestVerify_WithoutPendingRedirectsToRegister(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient(t)

	resp, _ := get(t, client, srv.URL+"/verify")
	require.Equal(t, "/register", resp.Request.URL.Path)

	resp, _ = postForm(t, client, srv.URL+"/verify", url.Values{"code": {"123456"}})
	require.Equal(t, "/register", resp.Request.URL.Path)
}

func TestWelcome_TamperedToken(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient(t)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: tokenCookie, Value: "not.a.token"}})

	resp, _ := get(t, client, srv.URL+"/welcome")
	require.Equal(t, "/login", resp.Request.URL.Path)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, sender := newTestServer(t)

	alice := newClient(t)
	postForm(t, alice, srv.URL+"/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"p1"},
		"confirm_password": {"p1"},
	})
	code := sender.code

	// another client has no pending registration
	other := newClient(t)
	resp, _ := get(t, other, srv.URL+"/verify")
	require.Equal(t, "/register", resp.Request.URL.Path)

	// alice's own verification still works
	resp, _ = postForm(t, alice, srv.URL+"/verify", url.Values{"code": {strconv.Itoa(code)}})
	require.Equal(t, "/login", resp.Request.URL.Path)
}
