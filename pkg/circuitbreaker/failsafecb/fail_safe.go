package failsafecb

import (
	"context"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// CbMap keeps every breaker built here, keyed by name, so operational
// tooling can force state changes at runtime.
var CbMap = &sync.Map{}

type FailSafeCB[R, T any] struct {
	Cb circuitbreaker.CircuitBreaker[any]
}

func NewFailSafe[R, T any](config *CBConfig) *FailSafeCB[R, T] {
	cb := circuitbreaker.Builder[any]().
		WithFailureRateThreshold(uint(config.FailureRateThreshold), uint(config.FailureExecutionThreshold), time.Duration(config.FailureThresholdingPeriodInMS)*time.Millisecond).
		WithSuccessThresholdRatio(uint(config.SuccessRatioThreshold), uint(config.SuccessThresholdingCapacity)).
		WithDelay(time.Duration(config.WithDelayInMS) * time.Millisecond).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.Debug().Msgf("circuit breaker %s moved %s -> %s", config.CBName, event.OldState, event.NewState)
			metric.Incr("circuit_breaker_state_changed", []string{"name", config.CBName, "from", event.OldState.String(), "to", event.NewState.String()})
		}).
		Build()
	f := &FailSafeCB[R, T]{
		Cb: cb,
	}
	CbMap.Store(config.CBName, f.Cb)
	return f
}

// run funnels a task through failsafe so the breaker observes every outcome.
func (f *FailSafeCB[R, T]) run(task func() (T, error)) (T, error) {
	var result T
	var taskErr error
	err := failsafe.Run(func() error {
		result, taskErr = task()
		return taskErr
	}, f.Cb)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (f *FailSafeCB[R, T]) Execute(request R, task func(R) (T, error)) (T, error) {
	return f.run(func() (T, error) {
		return task(request)
	})
}

func (f *FailSafeCB[R, T]) ExecuteForGrpc(ctx context.Context, request R, task func(context.Context, R, ...grpc.CallOption) (T, error)) (T, error) {
	return f.run(func() (T, error) {
		return task(ctx, request)
	})
}
