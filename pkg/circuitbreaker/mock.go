package circuitbreaker

import (
	"context"

	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc"
)

var (
	_ CircuitBreaker[any, any] = (*MockCircuitBreaker[any, any])(nil)
	_ ManualCircuitBreaker     = (*MockManualCircuitBreaker)(nil)
)

// MockCircuitBreaker records calls without running any breaker logic.
type MockCircuitBreaker[Request any, Response any] struct {
	mock.Mock
}

func mockedResponse[Response any](args mock.Arguments) (Response, error) {
	var res Response
	if val, ok := args.Get(0).(Response); ok {
		res = val
	}
	return res, args.Error(1)
}

func (m *MockCircuitBreaker[Request, Response]) Execute(request Request, task func(Request) (Response, error)) (Response, error) {
	return mockedResponse[Response](m.Called(request, task))
}

func (m *MockCircuitBreaker[Request, Response]) ExecuteForGrpc(ctx context.Context, request Request, task func(context.Context, Request, ...grpc.CallOption) (Response, error)) (Response, error) {
	return mockedResponse[Response](m.Called(ctx, request, task))
}

// MockManualCircuitBreaker records permit and outcome calls for assertions.
type MockManualCircuitBreaker struct {
	mock.Mock
}

func (m *MockManualCircuitBreaker) IsAllowed() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockManualCircuitBreaker) RecordSuccess() {
	m.Called()
}

func (m *MockManualCircuitBreaker) RecordFailure() {
	m.Called()
}
