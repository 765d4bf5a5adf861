package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	httpHelper "github.com/Meesho/BharatMLStack/iris/pkg/api/http"
)

// RequestBuilder assembles an *http.Request through chained WithX calls.
// Host, port, path, method and context are mandatory; everything else is
// optional.
type RequestBuilder struct {
	host    string
	port    int
	path    string
	method  string
	headers map[string]string
	body    any
	ctx     context.Context
}

func NewHttpRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		headers: make(map[string]string),
	}
}

func (b *RequestBuilder) WithHost(host string) *RequestBuilder {
	b.host = host
	return b
}

func (b *RequestBuilder) WithPort(port int) *RequestBuilder {
	b.port = port
	return b
}

func (b *RequestBuilder) WithPath(path string) *RequestBuilder {
	b.path = path
	return b
}

func (b *RequestBuilder) WithMethod(method string) *RequestBuilder {
	b.method = method
	return b
}

func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// WithHeaders merges headers into any set earlier, overwriting on key clash.
func (b *RequestBuilder) WithHeaders(headers map[string]string) *RequestBuilder {
	for key, value := range headers {
		b.headers[key] = value
	}
	return b
}

func (b *RequestBuilder) WithBody(body any) *RequestBuilder {
	b.body = body
	return b
}

func (b *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	b.ctx = ctx
	return b
}

func (b *RequestBuilder) validate() error {
	if len(b.host) == 0 {
		return errors.New("host is required")
	}
	if b.port == 0 {
		return errors.New("invalid port")
	}
	if len(b.path) == 0 {
		return errors.New("path is required")
	}
	if len(b.method) == 0 {
		return errors.New("method is required")
	}
	if b.ctx == nil {
		return errors.New("context is required, pass context.Background() if not required")
	}
	return nil
}

// BuildContentTypeJson validates the builder state and assembles the request
// with the body marshalled as application/json.
func (b *RequestBuilder) BuildContentTypeJson() (*http.Request, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	requestBody, err := json.Marshal(b.body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(b.ctx, b.method, httpHelper.BuildHttpUrl(b.host, b.port, b.path), bytes.NewBuffer(requestBody))
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set(httpHelper.HeaderContentType, httpHelper.HeaderValueApplicationJson)
	return req, err
}
