package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
)

const (
	testUserAgent     = "delhiflow-test/1.0"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, timeout time.Duration) (*Client, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewClient(baseURL, testUserAgent, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "India Gate, New Delhi", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[{"lat":"28.6129","lon":"77.2295","name":"India Gate",
			"display_name":"India Gate, Rajpath, New Delhi, Delhi, India","importance":0.71}]`)
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, 5*time.Second)
	result, err := c.ForwardGeocode(context.Background(), "India Gate, New Delhi")
	require.NoError(t, err)

	assert.Equal(t, 28.6129, result.Lat)
	assert.Equal(t, 77.2295, result.Lon)
	assert.Equal(t, "India Gate, Rajpath, New Delhi, Delhi, India", result.FormattedAddress)
	assert.Equal(t, "India Gate", result.PlaceName)
	assert.Equal(t, 0.71, result.Confidence)
	assert.True(t, result.Found())
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", "success")), 0)
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, 5*time.Second)
	result, err := c.ForwardGeocode(context.Background(), "Nowhere Street 999")
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", "empty")), 0)
}

func TestClient_ForwardGeocode_BadCoordinate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat":"north","lon":"77.2"}]`)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 5*time.Second)
	_, err := c.ForwardGeocode(context.Background(), "somewhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse lat")
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "28.613900", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.209000", r.URL.Query().Get("lon"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"lat":"28.6139","lon":"77.2090","name":"Janpath",
			"display_name":"Janpath, Connaught Place, New Delhi, India","importance":0.2}`)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 5*time.Second)
	result, err := c.ReverseGeocode(context.Background(), 28.6139, 77.209)
	require.NoError(t, err)

	assert.Equal(t, "Janpath, Connaught Place, New Delhi, India", result.FormattedAddress)
	assert.Equal(t, "Janpath", result.PlaceName)
}

func TestClient_ReverseGeocode_Unmatched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Unable to geocode"}`)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 5*time.Second)
	result, err := c.ReverseGeocode(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, result.Found())
}

func TestClient_ForwardGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`Access blocked`))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, 5*time.Second)
	_, err := c.ForwardGeocode(context.Background(), "India Gate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, domain.IsRetryable(err), "client errors are permanent")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", "error")), 0)
}

func TestClient_ForwardGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.ForwardGeocode(context.Background(), "India Gate")
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_ForwardGeocode_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 5*time.Second)
	_, err := c.ForwardGeocode(context.Background(), "India Gate")

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	assert.True(t, domain.IsRetryable(err))
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c, _ := testClient("", time.Second)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
