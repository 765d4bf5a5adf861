package circuitbreaker

import (
	"context"

	"github.com/Meesho/BharatMLStack/iris/pkg/circuitbreaker/failsafecb"
	"github.com/Meesho/BharatMLStack/iris/pkg/circuitbreaker/manualcb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// CircuitBreaker runs the task itself and records the outcome it observes.
type CircuitBreaker[Request any, Response any] interface {
	Execute(request Request, task func(Request) (Response, error)) (Response, error)
	ExecuteForGrpc(ctx context.Context, request Request, task func(context.Context, Request, ...grpc.CallOption) (Response, error)) (Response, error)
}

// ManualCircuitBreaker leaves execution to the caller, who asks for a permit
// and reports the outcome.
type ManualCircuitBreaker interface {
	IsAllowed() bool
	RecordSuccess()
	RecordFailure()
}

func GetCircuitBreaker[T, R any](config *Config) CircuitBreaker[T, R] {
	switch config.Version {
	case 1:
		return failSafeCB[T, R](config)
	default:
		log.Panic().Msgf("Circuit breaker version %d not supported", config.Version)
	}
	return nil
}

func failSafeCB[T, R any](config *Config) CircuitBreaker[T, R] {
	return failsafecb.NewFailSafe[T, R](&failsafecb.CBConfig{
		CBName:                        config.Name,
		FailureRateThreshold:          config.FailureRateThreshold,
		FailureExecutionThreshold:     config.FailureRateMinimumWindow,
		FailureThresholdingPeriodInMS: config.FailureRateWindowInMs,
		SuccessRatioThreshold:         config.SuccessCountThreshold,
		SuccessThresholdingCapacity:   config.SuccessCountWindow,
		WithDelayInMS:                 config.WithDelayInMS,
	})
}

// GetManualCircuitBreaker returns a pass-through breaker when disabled, so
// call sites never have to branch on config.Enabled themselves.
func GetManualCircuitBreaker(config *Config) ManualCircuitBreaker {
	if config == nil {
		return nil
	}
	if !config.Enabled {
		return manualcb.NewPassThroughBreaker()
	}

	switch config.Version {
	case 1:
		return manualFailSafeCB(config)
	default:
		log.Panic().Msgf("Circuit breaker version %d not supported", config.Version)
	}
	return nil
}

func manualFailSafeCB(config *Config) ManualCircuitBreaker {
	return manualcb.NewManualFailsafeBreaker(&manualcb.CBConfig{
		CBName:                        config.Name,
		FailureRateThreshold:          config.FailureRateThreshold,
		FailureExecutionThreshold:     config.FailureRateMinimumWindow,
		FailureThresholdingPeriodInMS: config.FailureRateWindowInMs,
		SuccessRatioThreshold:         config.SuccessCountThreshold,
		SuccessThresholdingCapacity:   config.SuccessCountWindow,
		WithDelayInMS:                 config.WithDelayInMS,
	})
}
