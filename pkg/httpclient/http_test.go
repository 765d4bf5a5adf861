package httpclient

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Meesho/BharatMLStack/iris/pkg/tracing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "numeric ids",
			path:     "/indexes/42/runs/1077",
			expected: "/indexes/{id}/runs/{id}",
		},
		{
			name:     "uuid and numeric id",
			path:     "/runs/123e4567-e89b-12d3-a456-426614174000/steps/7",
			expected: "/runs/{uuid}/steps/{id}",
		},
		{
			name:     "mongo object id",
			path:     "/documents/5f6e0d2b4e2d6b0001d1c1f5/vectors/12",
			expected: "/documents/{objectId}/vectors/{id}",
		},
		{
			name:     "all three id styles in one path",
			path:     "/documents/5f6e0d2b4e2d6b0001d1c1f5/runs/1077/123e4567-e89b-12d3-a456-426614174000",
			expected: "/documents/{objectId}/runs/{id}/{uuid}",
		},
		{
			name:     "no matching segments",
			path:     "/admin/indexes/stats",
			expected: "/admin/indexes/stats",
		},
		{
			name:     "empty path",
			path:     "",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, normalizePath(test.path))
		})
	}
}

func testClientConfig() *Config {
	return &Config{
		TimeoutInMs: 100,
		Transport: &TransportConfig{
			DialTimeoutInMs:      1000,
			MaxIdleConns:         100,
			MaxIdleConnsPerHost:  100,
			IdleConnTimeoutInMs:  30000,
			KeepAliveTimeoutInMs: 30000,
		},
	}
}

func TestNewCoreClientWithOtel(t *testing.T) {
	t.Run("with tracer initialized", func(t *testing.T) {
		viper.Set("APP_NAME", "httpclient-test")
		os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
		tracing.Init()
		defer tracing.ShutdownTracer()
		defer os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		defer viper.Reset()

		client := newCoreClient(testClientConfig())

		assert.NotNil(t, client)
		assert.IsType(t, &otelhttp.Transport{}, client.Transport)
	})

	t.Run("without tracer initialized", func(t *testing.T) {
		// otelhttp.NewTransport falls back to a no-op tracer provider, so
		// the transport type is the same either way.
		client := newCoreClient(testClientConfig())

		assert.NotNil(t, client)
		assert.IsType(t, &otelhttp.Transport{}, client.Transport)
	})
}

// startTestServer returns a stub server and a client configured against it.
func startTestServer(t *testing.T) (*httptest.Server, *HTTPClient) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}))

	serverURL, err := url.Parse(server.URL)
	assert.NoError(t, err)

	config := testClientConfig()
	config.Scheme = serverURL.Scheme
	config.Host = serverURL.Hostname()
	config.Port = serverURL.Port()
	config.TimeoutInMs = 1000

	return server, NewConnFromConfig(config, "TEST_PREFIX")
}

func TestHTTPClient_Do_NoTracer(t *testing.T) {
	server, client := startTestServer(t)
	defer server.Close()
	assert.NotNil(t, client)

	req, err := http.NewRequest("GET", server.URL, nil)
	assert.NoError(t, err)

	resp, err := client.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPClient_Do_WithTracer(t *testing.T) {
	server, client := startTestServer(t)
	defer server.Close()

	tracing.Init()
	defer tracing.ShutdownTracer()

	req, err := http.NewRequest("GET", server.URL, nil)
	assert.NoError(t, err)

	resp, err := client.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
