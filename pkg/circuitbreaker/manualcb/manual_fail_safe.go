package manualcb

import (
	"time"

	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog/log"
)

// CBConfig mirrors the failsafe builder inputs for manually driven breakers.
// SuccessRatioThreshold is a percentage of SuccessThresholdingCapacity, the
// half-open window closes once that share of executions succeed.
type CBConfig struct {
	CBName                        string
	FailureRateThreshold          int
	FailureExecutionThreshold     int
	FailureThresholdingPeriodInMS int
	SuccessRatioThreshold         int
	SuccessThresholdingCapacity   int
	WithDelayInMS                 int
}

// ManualFailsafeBreaker exposes the standalone (non-executing) side of a
// failsafe-go breaker: callers ask for a permit, run their own work, and
// record the outcome.
type ManualFailsafeBreaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

func NewManualFailsafeBreaker(config *CBConfig) *ManualFailsafeBreaker {
	successThreshold := uint(config.SuccessThresholdingCapacity * config.SuccessRatioThreshold / 100)
	if successThreshold == 0 {
		successThreshold = 1
	}
	cb := circuitbreaker.Builder[any]().
		WithFailureRateThreshold(uint(config.FailureRateThreshold), uint(config.FailureExecutionThreshold), time.Duration(config.FailureThresholdingPeriodInMS)*time.Millisecond).
		WithSuccessThresholdRatio(successThreshold, uint(config.SuccessThresholdingCapacity)).
		WithDelay(time.Duration(config.WithDelayInMS) * time.Millisecond).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.Debug().Msgf("circuit breaker %s moved %s -> %s", config.CBName, event.OldState, event.NewState)
			metric.Incr("circuit_breaker_state_changed", []string{"name", config.CBName, "from", event.OldState.String(), "to", event.NewState.String()})
		}).
		Build()
	return &ManualFailsafeBreaker{cb: cb}
}

func (b *ManualFailsafeBreaker) IsAllowed() bool {
	return b.cb.TryAcquirePermit()
}

func (b *ManualFailsafeBreaker) RecordSuccess() {
	b.cb.RecordSuccess()
}

func (b *ManualFailsafeBreaker) RecordFailure() {
	b.cb.RecordFailure()
}
