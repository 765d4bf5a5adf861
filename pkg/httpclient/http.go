package httpclient

import (
	"net"
	"net/http"
	"os"
	"regexp"
	"time"

	httpHelper "github.com/Meesho/BharatMLStack/iris/pkg/api/http"
	"github.com/Meesho/BharatMLStack/iris/pkg/circuitbreaker"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	defaultDialTimeout      = 30000 // in milliseconds
	defaultKeepAliveTimeout = 30000 // in milliseconds
	defaultScheme           = "http"
	defaultPort             = "80"
)

type Config struct {
	Scheme      string
	Host        string
	Port        string
	TimeoutInMs int
	CBConfig    *circuitbreaker.Config
	Transport   *TransportConfig
}

type TransportConfig struct {
	DialTimeoutInMs      int
	MaxIdleConns         int
	MaxIdleConnsPerHost  int
	IdleConnTimeoutInMs  int
	KeepAliveTimeoutInMs int
}

type HTTPClient struct {
	CoreClient     *http.Client
	Endpoint       string
	envPrefix      string
	circuitBreaker circuitbreaker.CircuitBreaker[*http.Request, *http.Response]
}

// Path segments that hold identifiers are collapsed before tagging metrics,
// otherwise every entity id becomes its own metric series.
var pathPatterns = []struct {
	regex       *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), "/{uuid}"},
	{regexp.MustCompile(`/[0-9a-fA-F]{24}`), "/{objectId}"},
	{regexp.MustCompile(`/\d+`), "/{id}"},
}

// NewConn builds the client from viper keys under envPrefix, wiring in a
// circuit breaker when the prefix carries breaker config.
func NewConn(envPrefix string) *HTTPClient {
	config := loadConfig(envPrefix)
	config.CBConfig = circuitbreaker.BuildConfig(envPrefix)
	return NewConnFromConfig(config, envPrefix)
}

// NewConnFromConfig builds the client from an already assembled Config.
func NewConnFromConfig(config *Config, envPrefix string) *HTTPClient {
	var cb circuitbreaker.CircuitBreaker[*http.Request, *http.Response]
	if config.CBConfig != nil && config.CBConfig.Enabled {
		cb = circuitbreaker.GetCircuitBreaker[*http.Request, *http.Response](config.CBConfig)
	}
	return &HTTPClient{
		CoreClient:     newCoreClient(config),
		Endpoint:       endpointOf(config),
		envPrefix:      envPrefix,
		circuitBreaker: cb,
	}
}

func requireKey(key string) {
	if !viper.IsSet(key) {
		log.Panic().Msg(key + " not set")
	}
}

func intSetting(key string, fallback int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return fallback
}

func loadConfig(envPrefix string) *Config {
	requireKey(envPrefix + httpHelper.Host)
	requireKey(envPrefix + httpHelper.Timeout)

	config := &Config{
		Scheme:      defaultScheme,
		Port:        defaultPort,
		Host:        viper.GetString(envPrefix + httpHelper.Host),
		TimeoutInMs: viper.GetInt(envPrefix + httpHelper.Timeout),
	}
	if viper.IsSet(envPrefix + httpHelper.Port) {
		config.Port = viper.GetString(envPrefix + httpHelper.Port)
	}
	config.Transport = loadTransportConfig(envPrefix)
	return config
}

func loadTransportConfig(envPrefix string) *TransportConfig {
	requireKey(envPrefix + httpHelper.MaxIdleConnections)
	requireKey(envPrefix + httpHelper.MaxIdleConnectionsPerHost)
	requireKey(envPrefix + httpHelper.IdleConnectionTimeout)

	return &TransportConfig{
		DialTimeoutInMs:      intSetting(envPrefix+httpHelper.DialTimeout, defaultDialTimeout),
		KeepAliveTimeoutInMs: intSetting(envPrefix+httpHelper.KeepAliveTimeout, defaultKeepAliveTimeout),
		MaxIdleConns:         viper.GetInt(envPrefix + httpHelper.MaxIdleConnections),
		MaxIdleConnsPerHost:  viper.GetInt(envPrefix + httpHelper.MaxIdleConnectionsPerHost),
		IdleConnTimeoutInMs:  viper.GetInt(envPrefix + httpHelper.IdleConnectionTimeout),
	}
}

func endpointOf(config *Config) string {
	return config.Scheme + "://" + config.Host + ":" + config.Port
}

func newCoreClient(config *Config) *http.Client {
	log.Debug().Msgf("Creating http client with config: %+v", config)
	return &http.Client{
		Transport: otelhttp.NewTransport(buildTransport(config.Transport)),
		Timeout:   time.Duration(config.TimeoutInMs) * time.Millisecond,
	}
}

func buildTransport(tc *TransportConfig) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{
		Timeout:   time.Duration(tc.DialTimeoutInMs) * time.Millisecond,
		KeepAlive: time.Duration(tc.KeepAliveTimeoutInMs) * time.Millisecond,
	}).DialContext
	tr.MaxIdleConns = tc.MaxIdleConns
	tr.MaxIdleConnsPerHost = tc.MaxIdleConnsPerHost
	tr.IdleConnTimeout = time.Duration(tc.IdleConnTimeoutInMs) * time.Millisecond
	return tr
}

// Do sends the request through the circuit breaker when one is configured
// and emits latency and count metrics for the external service.
func (h *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var resp *http.Response
	var err error
	if h.circuitBreaker != nil {
		resp, err = h.circuitBreaker.Execute(req, h.CoreClient.Do)
	} else {
		resp, err = h.CoreClient.Do(req)
	}
	h.observe(req, start, resp, err)
	return resp, err
}

// observe tags the call with status 0 when no response came back at all,
// and with 504 when the failure was a timeout.
func (h *HTTPClient) observe(req *http.Request, start time.Time, resp *http.Response, err error) {
	status := 0
	switch {
	case resp != nil:
		status = resp.StatusCode
	case os.IsTimeout(err):
		log.Error().Err(err).Msg("Request timed out")
		status = http.StatusGatewayTimeout
	}
	path := normalizePath(req.URL.Path)
	latencyTags := metric.BuildExternalHTTPServiceLatencyTags(h.envPrefix, path, req.Method, status)
	countTags := metric.BuildExternalHTTPServiceCountTags(h.envPrefix, path, req.Method, status)
	metric.Timing(metric.ExternalApiRequestLatency, time.Since(start), latencyTags)
	metric.Incr(metric.ExternalApiRequestCount, countTags)
}

func normalizePath(path string) string {
	for _, pattern := range pathPatterns {
		path = pattern.regex.ReplaceAllString(path, pattern.replacement)
	}
	return path
}
