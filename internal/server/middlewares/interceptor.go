package middlewares

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	CallerIdHeader  = "iris-caller-id"
	AuthTokenHeader = "iris-auth-token"
)

var (
	authTokens string
	initOnce   sync.Once
)

func Init() {
	initOnce.Do(func() {
		authTokens = structs.GetAppConfig().Configs.AuthTokens
	})
}

// ServerInterceptor authenticates unary calls and records per-method metrics.
// Health probes carry no auth metadata and pass straight through.
func ServerInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	start := time.Now()
	if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
		return handler(ctx, req)
	}
	callerId := metadata.ValueFromIncomingContext(ctx, CallerIdHeader)
	if len(callerId) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "%s header is missing", CallerIdHeader)
	}
	authHeader := metadata.ValueFromIncomingContext(ctx, AuthTokenHeader)
	if len(authHeader) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "%s header is missing", AuthTokenHeader)
	}
	if !isAuthorized(authHeader) {
		return nil, status.Errorf(codes.Unauthenticated, "Invalid auth token")
	}

	resp, err = handler(ctx, req)

	code := codes.OK
	if err != nil {
		code = status.Code(err)
	}
	recordCallMetrics(start, info, callerId[0], code)
	return resp, err
}

func isAuthorized(authHeaders []string) bool {
	if len(authTokens) == 0 {
		log.Panic().Msgf("AuthTokens not set")
	}
	return slices.Contains(strings.Split(authTokens, ","), authHeaders[0])
}

func recordCallMetrics(start time.Time, info *grpc.UnaryServerInfo, callerId string, code codes.Code) {
	tags := []string{"method", info.FullMethod, "caller_id", callerId, "status", code.String()}
	metric.Incr("iris_grpc_request", tags)
	metric.Timing("iris_grpc_request_latency", time.Since(start), tags)
}
