package gsn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AI2HU/gsnweb/internal/config"
)

type fakeGSN struct {
	*httptest.Server
	tokenCalls atomic.Int32
	lastForm   url.Values
	lastQuery  url.Values
	lastAuth   string
	expiresIn  int
}

func newFakeGSN(t *testing.T) *fakeGSN {
	t.Helper()
	f := &fakeGSN{expiresIn: 3600}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastForm = r.PostForm
		n := f.tokenCalls.Add(1)
		if r.PostForm.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","refresh_token":"refresh-%d","expires_in":%d}`, n, n, f.expiresIn)
	})
	mux.HandleFunc("/ws/api/sensors", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		if f.lastAuth == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	})
	mux.HandleFunc("/ws/api/sensors/rock_temp/data", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		f.lastQuery = r.URL.Query()
		fmt.Fprint(w, `{"properties":{"values":[[1,2]]}}`)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func testConfig(base string) config.GSNConfig {
	return config.GSNConfig{
		ClientID:         "gsn-webui-backend",
		ClientSecret:     "secret",
		ServiceURLPublic: "https://gsn.example.org/ws/",
		ServiceURLLocal:  base + "/ws/",
		WebUIURL:         "https://ui.example.org/",
		MaxQuerySize:     5000,
	}
}

func TestClampSize(t *testing.T) {
	c := New(testConfig("http://localhost"))

	assert.Equal(t, 5000, c.ClampSize(0))
	assert.Equal(t, 5000, c.ClampSize(-3))
	assert.Equal(t, 1, c.ClampSize(1))
	assert.Equal(t, 4999, c.ClampSize(4999))
	assert.Equal(t, 5000, c.ClampSize(5000))
	assert.Equal(t, 5000, c.ClampSize(1_000_000))
}

func TestAuthorizeURL(t *testing.T) {
	c := New(testConfig("http://localhost"))

	raw, err := c.AuthorizeURL("state-1", "https://backend.example.org/api/v1/auth/callback")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "gsn.example.org", u.Host)
	assert.Equal(t, "/ws/oauth2/auth", u.Path)
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "gsn-webui-backend", u.Query().Get("client_id"))
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "https://backend.example.org/api/v1/auth/callback", u.Query().Get("redirect_uri"))
}

func TestExchangeCode(t *testing.T) {
	f := newFakeGSN(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(testConfig(f.URL), WithClock(func() time.Time { return now }))

	token, err := c.ExchangeCode(context.Background(), "abc", "https://backend/cb")
	require.NoError(t, err)

	assert.Equal(t, "token-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)

	assert.Equal(t, "authorization_code", f.lastForm.Get("grant_type"))
	assert.Equal(t, "abc", f.lastForm.Get("code"))
	assert.Equal(t, "https://backend/cb", f.lastForm.Get("redirect_uri"))
	assert.Equal(t, "gsn-webui-backend", f.lastForm.Get("client_id"))
	assert.Equal(t, "secret", f.lastForm.Get("client_secret"))
}

func TestRefreshToken(t *testing.T) {
	f := newFakeGSN(t)
	c := New(testConfig(f.URL))

	token, err := c.RefreshToken(context.Background(), "refresh-0")
	require.NoError(t, err)
	assert.Equal(t, "token-1", token.AccessToken)
	assert.Equal(t, "refresh_token", f.lastForm.Get("grant_type"))
	assert.Equal(t, "refresh-0", f.lastForm.Get("refresh_token"))
}

func TestClientCredentials_BadSecret(t *testing.T) {
	f := newFakeGSN(t)
	cfg := testConfig(f.URL)
	cfg.ClientSecret = "wrong"
	c := New(cfg)

	_, err := c.ClientCredentials(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid_client")
}

func TestServiceToken_Cached(t *testing.T) {
	f := newFakeGSN(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(testConfig(f.URL), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	first, err := c.ServiceToken(ctx)
	require.NoError(t, err)
	second, err := c.ServiceToken(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, "client_credentials", f.lastForm.Get("grant_type"))

	// inside the renewal leeway
	now = now.Add(time.Hour - 10*time.Second)
	third, err := c.ServiceToken(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, int32(2), f.tokenCalls.Load())

	c.InvalidateServiceToken()
	_, err = c.ServiceToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.tokenCalls.Load())
}

func TestListSensors(t *testing.T) {
	f := newFakeGSN(t)
	c := New(testConfig(f.URL))

	raw, err := c.ListSensors(context.Background(), "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
	assert.Equal(t, "Bearer abc", f.lastAuth)

	_, err = c.ListSensors(context.Background(), "expired")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestSensorData_ClampsSize(t *testing.T) {
	f := newFakeGSN(t)
	cfg := testConfig(f.URL)
	cfg.MaxQuerySize = 100
	c := New(cfg)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	raw, err := c.SensorData(context.Background(), "abc", "rock_temp", DataQuery{From: from, To: to, Size: 1000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"properties":{"values":[[1,2]]}}`, string(raw))

	assert.Equal(t, "100", f.lastQuery.Get("size"))
	assert.Equal(t, "2026-03-01T00:00:00", f.lastQuery.Get("from"))
	assert.Equal(t, "2026-03-02T00:00:00", f.lastQuery.Get("to"))

	_, err = c.SensorData(context.Background(), "abc", "rock_temp", DataQuery{})
	require.NoError(t, err)
	assert.Equal(t, "100", f.lastQuery.Get("size"))
	assert.Empty(t, f.lastQuery.Get("from"))
}

func TestSensorData_InvalidInput(t *testing.T) {
	c := New(testConfig("http://localhost"))
	ctx := context.Background()

	_, err := c.SensorData(ctx, "abc", " ", DataQuery{})
	assert.Error(t, err)

	now := time.Now()
	_, err = c.SensorData(ctx, "abc", "rock_temp", DataQuery{From: now, To: now.Add(-time.Hour)})
	assert.Error(t, err)
}

func TestRateLimit_RespectsContext(t *testing.T) {
	f := newFakeGSN(t)
	c := New(testConfig(f.URL), WithRateLimit(rate.Every(time.Hour), 1))

	_, err := c.ListSensors(context.Background(), "abc")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListSensors(ctx, "abc")
	assert.Error(t, err)
}
