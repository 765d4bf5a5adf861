package metric

import (
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ApiRequestCount           = "api_request_count"
	ApiRequestLatency         = "api_request_latency"
	ExternalApiRequestCount   = "external_api_request_count"
	ExternalApiRequestLatency = "external_api_request_latency"
)

const defaultAddress = "localhost:8125"

var (
	// safe for concurrent use; swapped once by Init
	client       = newFallbackClient()
	samplingRate = 0.0
	serviceName  = ""
	initialized  = false
	once         sync.Once
)

// Init connects the statsd client to the local telegraf agent. Metrics
// emitted before Init go through a fallback client with no global tags.
func Init() {
	if initialized {
		log.Debug().Msg("metrics already initialized")
		return
	}
	once.Do(func() {
		samplingRate = viper.GetFloat64("APP_METRIC_SAMPLING_RATE")
		serviceName = viper.GetString("APP_NAME")
		tags := baseTags()
		c, err := statsd.New(defaultAddress, statsd.WithTags(tags))
		if err != nil {
			log.Panic().Err(err).Msg("statsd client initialization failed")
		}
		client = c
		initialized = true
		log.Info().
			Str("address", defaultAddress).
			Strs("global_tags", tags).
			Float64("sampling_rate", samplingRate).
			Msg("metrics client initialized")
	})
}

func newFallbackClient() *statsd.Client {
	c, _ := statsd.New(defaultAddress)
	return c
}

func baseTags() []string {
	bindings := []struct {
		env string
		tag string
	}{
		{"APP_ENV", TagEnv},
		{"APP_NAME", TagService},
	}
	tags := make([]string, 0, len(bindings))
	for _, b := range bindings {
		value := viper.GetString(b.env)
		if value == "" {
			log.Warn().Msgf("%s is not set", b.env)
		}
		tags = append(tags, TagAsString(b.tag, value))
	}
	return tags
}

// Timing sends a latency sample.
func Timing(name string, value time.Duration, tags []string) {
	err := client.Timing(name, value, withService(tags), samplingRate)
	warnOnSendError("timing", name, err)
}

// TimingWithStart records the time elapsed since startTime. Usable as
// 'defer metric.TimingWithStart("name", time.Now(), tags)'.
func TimingWithStart(name string, startTime time.Time, tags []string) {
	Timing(name, time.Since(startTime), tags)
}

// Count adds value to the named counter.
func Count(name string, value int64, tags []string) {
	err := client.Count(name, value, withService(tags), samplingRate)
	warnOnSendError("count", name, err)
}

// Incr adds one to the named counter.
func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

// Gauge reports the current value of the named gauge.
func Gauge(name string, value float64, tags []string) {
	err := client.Gauge(name, value, withService(tags), samplingRate)
	warnOnSendError("gauge", name, err)
}

func withService(tags []string) []string {
	return append(tags, TagAsString(TagService, serviceName))
}

func warnOnSendError(kind, name string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("metric", name).Msgf("statsd %s failed", kind)
	}
}

func BuildExternalHTTPServiceLatencyTags(service, path, method string, statusCode int) []string {
	return externalHTTPTags(service, path, method, statusCode)
}

func BuildExternalHTTPServiceCountTags(service, path, method string, statusCode int) []string {
	return externalHTTPTags(service, path, method, statusCode)
}

func externalHTTPTags(service, path, method string, statusCode int) []string {
	return BuildTag(
		NewTag(TagCommunicationProtocol, TagValueCommunicationProtocolHttp),
		NewTag(TagExternalService, service),
		NewTag(TagPath, path),
		NewTag(TagMethod, method),
		NewTag(TagHttpStatusCode, strconv.Itoa(statusCode)),
	)
}
