package api

import (
	"context"
	"errors"
	"fmt"
	netHttp "net/http"

	"github.com/Meesho/BharatMLStack/iris/pkg/api/http"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestContext carries the caller identity headers attached to every
// request. CallerId and AuthToken are mandatory, the rest are best effort.
type RequestContext struct {
	CallerId      string
	AuthToken     string
	RequestId     string
	ClientVersion string
}

const (
	RequestContextValue = "REQUEST_CONTEXT"
)

// GetRequestContextForGRPC builds a RequestContext from incoming gRPC
// metadata.
func GetRequestContextForGRPC(ctx context.Context) (*RequestContext, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "metadata is not provided")
	}

	callerId, err := requireMetadataValue(md, http.HeaderCallerId, "caller id")
	if err != nil {
		return nil, err
	}
	authToken, err := requireMetadataValue(md, http.HeaderAuthToken, "auth token")
	if err != nil {
		return nil, err
	}
	requestId, _ := getMetadataValue(md, http.HeaderRequestId)
	clientVersion, _ := getMetadataValue(md, http.HeaderClientVersion)

	return &RequestContext{
		CallerId:      callerId,
		AuthToken:     authToken,
		RequestId:     requestId,
		ClientVersion: clientVersion,
	}, nil
}

func requireMetadataValue(md metadata.MD, key, name string) (string, error) {
	value, err := getMetadataValue(md, key)
	if err != nil {
		return "", err
	}
	if len(value) == 0 {
		return "", errors.New(name + " is empty in headers")
	}
	return value, nil
}

func getMetadataValue(md metadata.MD, key string) (string, error) {
	values := md.Get(key)
	if len(values) == 0 {
		return "", fmt.Errorf("metadata key %q is missing", key)
	}
	return values[0], nil
}

// UpdateWithGRPCHeaders copies the request context into an outgoing header
// map.
func UpdateWithGRPCHeaders(headers map[string]string, context *RequestContext) {
	headers[http.HeaderCallerId] = context.CallerId
	headers[http.HeaderAuthToken] = context.AuthToken
	headers[http.HeaderRequestId] = context.RequestId
	headers[http.HeaderClientVersion] = context.ClientVersion
}

// GetRequestContext builds a RequestContext from gin request headers.
func GetRequestContext(context *gin.Context) (*RequestContext, error) {
	callerId, err := requireHeader(context, http.HeaderCallerId, "caller id")
	if err != nil {
		return nil, err
	}
	authToken, err := requireHeader(context, http.HeaderAuthToken, "auth token")
	if err != nil {
		return nil, err
	}

	return &RequestContext{
		CallerId:      callerId,
		AuthToken:     authToken,
		RequestId:     context.Request.Header.Get(http.HeaderRequestId),
		ClientVersion: context.Request.Header.Get(http.HeaderClientVersion),
	}, nil
}

func requireHeader(context *gin.Context, key, name string) (string, error) {
	value := context.Request.Header.Get(key)
	if len(value) == 0 {
		return "", errors.New(name + " is missing in headers")
	}
	return value, nil
}

// UpdateWithHeaders copies the request context into outbound http headers.
func UpdateWithHeaders(header *netHttp.Header, context *RequestContext) {
	header.Set(http.HeaderCallerId, context.CallerId)
	header.Set(http.HeaderAuthToken, context.AuthToken)
	header.Set(http.HeaderRequestId, context.RequestId)
	header.Set(http.HeaderClientVersion, context.ClientVersion)
}
