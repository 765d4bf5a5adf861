package circuitbreaker

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Env suffixes for breaker properties. Each client appends these to its own
// env prefix, e.g. VECTORIZER_CB_ENABLED.
const (
	CBEnabled                  = "_CB_ENABLED"
	CBName                     = "_CB_NAME"
	CBFailureCountThreshold    = "_CB_FAILURE_COUNT_THRESHOLD"
	CBFailureRateThreshold     = "_CB_FAILURE_RATE_THRESHOLD"
	CBFailureRateMinimumWindow = "_CB_FAILURE_RATE_MINIMUM_WINDOW"
	CBFailureRateWindowInMs    = "_CB_FAILURE_RATE_WINDOW_IN_MS"
	CBFailureCountWindow       = "_CB_FAILURE_COUNT_WINDOW"
	CBSuccessCountThreshold    = "_CB_SUCCESS_COUNT_THRESHOLD"
	CBSuccessCountWindow       = "_CB_SUCCESS_COUNT_WINDOW"
	CBVersion                  = "_CB_VERSION"
	CBWithDelayInMS            = "_CB_WITH_DELAY_IN_MS"
)

// Config holds the thresholds for both failure detection styles. Time based
// thresholding uses the FailureRate* fields, count based uses the
// FailureCount* pair; an enabled breaker must fully specify at least one of
// the two.
type Config struct {
	// Enabled bypasses the breaker entirely when false.
	Enabled bool

	// Name tags logs and metrics emitted on state changes.
	Name string

	// Version selects the breaker implementation.
	Version int

	// FailureCountThreshold out of the last FailureCountWindow executions
	// must fail for the circuit to open.
	FailureCountThreshold int
	FailureCountWindow    int

	// FailureRateThreshold is a percentage from 1 to 100. The circuit opens
	// once the failure rate crosses it within a rolling window of
	// FailureRateWindowInMs, provided at least FailureRateMinimumWindow
	// executions were recorded in that window.
	FailureRateThreshold     int
	FailureRateMinimumWindow int
	FailureRateWindowInMs    int

	// SuccessCountThreshold percent of SuccessCountWindow half-open
	// executions must succeed for the circuit to close again.
	SuccessCountThreshold int
	SuccessCountWindow    int

	// WithDelayInMS is how long the circuit stays open before probing.
	WithDelayInMS int
}

// BuildConfig reads the breaker properties under the given env prefix. A
// missing or false _CB_ENABLED yields a disabled config; when enabled, every
// mandatory key is validated before loading.
func BuildConfig(serviceName string) *Config {
	cbConfig := Config{
		Enabled: false,
	}
	if !viper.IsSet(serviceName+CBEnabled) || !viper.GetBool(serviceName+CBEnabled) {
		return &cbConfig
	}

	cbConfig.Enabled = true
	requireBreakerKeys(serviceName)
	cbConfig.Name = viper.GetString(serviceName + CBName)
	cbConfig.Version = viper.GetInt(serviceName + CBVersion)
	cbConfig.FailureRateThreshold = viper.GetInt(serviceName + CBFailureRateThreshold)
	cbConfig.FailureRateMinimumWindow = viper.GetInt(serviceName + CBFailureRateMinimumWindow)
	cbConfig.FailureRateWindowInMs = viper.GetInt(serviceName + CBFailureRateWindowInMs)
	cbConfig.FailureCountThreshold = viper.GetInt(serviceName + CBFailureCountThreshold)
	cbConfig.FailureCountWindow = viper.GetInt(serviceName + CBFailureCountWindow)
	cbConfig.SuccessCountThreshold = viper.GetInt(serviceName + CBSuccessCountThreshold)
	cbConfig.SuccessCountWindow = viper.GetInt(serviceName + CBSuccessCountWindow)
	cbConfig.WithDelayInMS = viper.GetInt(serviceName + CBWithDelayInMS)

	// Keys may be set yet zero, so re-check the loaded values.
	timeBased := cbConfig.FailureRateThreshold != 0 && cbConfig.FailureRateMinimumWindow != 0 && cbConfig.FailureRateWindowInMs != 0
	countBased := cbConfig.FailureCountThreshold != 0 && cbConfig.FailureCountWindow != 0
	if !timeBased && !countBased {
		log.Panic().Msgf("%s: neither time based nor count based failure thresholds are fully defined", serviceName)
	}

	return &cbConfig
}

func requireBreakerKeys(serviceName string) {
	for _, suffix := range []string{CBName, CBSuccessCountThreshold, CBSuccessCountWindow, CBVersion, CBWithDelayInMS} {
		if !viper.IsSet(serviceName + suffix) {
			log.Panic().Msgf("%s%s not set", serviceName, suffix)
		}
	}
	if !viper.IsSet(serviceName+CBFailureRateThreshold) && !viper.IsSet(serviceName+CBFailureCountThreshold) {
		log.Panic().Msgf("%s: neither time based nor count based failure thresholds are set", serviceName)
	}
	if viper.IsSet(serviceName + CBFailureRateThreshold) {
		for _, suffix := range []string{CBFailureRateMinimumWindow, CBFailureRateWindowInMs} {
			if !viper.IsSet(serviceName + suffix) {
				log.Panic().Msgf("%s%s not set, required for time based failure thresholding", serviceName, suffix)
			}
		}
	}
}
