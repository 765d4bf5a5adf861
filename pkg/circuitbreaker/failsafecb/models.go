package failsafecb

// CBConfig carries the failsafe-go builder inputs. Thresholds follow the
// failsafe-go semantics: failures are rate-based over a rolling period,
// recovery is ratio-based over the half-open execution capacity.
type CBConfig struct {
	CBName                        string
	FailureRateThreshold          int
	FailureExecutionThreshold     int
	FailureThresholdingPeriodInMS int
	SuccessRatioThreshold         int
	SuccessThresholdingCapacity   int
	WithDelayInMS                 int
}
