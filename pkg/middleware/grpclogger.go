package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	MetadataCallerId = "iris-caller-id"
)

// GRPCLogger is a unary interceptor that writes one access log line per call
// and emits request count and latency metrics tagged with the caller id.
func GRPCLogger(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (resp interface{}, err error) {
	start := time.Now()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}
	callerId := md.Get(MetadataCallerId)
	requestHeaders, _ := json.Marshal(md)

	resp, err = handler(ctx, req)

	statusCode := codes.OK
	if err != nil {
		statusCode = status.Code(err)
	}
	elapsed := time.Since(start)

	logMessage := fmt.Sprintf("%s | %d | %s | %s", info.FullMethod, statusCode, elapsed, requestHeaders)
	if err != nil {
		log.Error().Err(err).Msg(logMessage)
	} else {
		log.Info().Msg(logMessage)
	}
	emitGrpcMetrics(info, elapsed, statusCode, callerId)
	return resp, err
}

func emitGrpcMetrics(info *grpc.UnaryServerInfo, elapsed time.Duration,
	statusCode codes.Code, callerId []string) {
	metricTags := metric.BuildTag(
		metric.NewTag(metric.TagPath, info.FullMethod),
		metric.NewTag(metric.TagGrpcStatusCode, strconv.Itoa(int(statusCode))),
	)
	if len(callerId) != 0 {
		metricTags = append(metricTags, metric.TagAsString(metric.TagCallerId, callerId[0]))
	}
	metric.Timing(metric.ApiRequestLatency, elapsed, metricTags)
	metric.Incr(metric.ApiRequestCount, metricTags)
}
