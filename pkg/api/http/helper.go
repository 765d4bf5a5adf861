package http

import (
	"fmt"
	"net/http"
)

const (
	Timeout                   = "_TIMEOUT_IN_MS"
	Host                      = "_HOST"
	Port                      = "_PORT"
	DialTimeout               = "_DIAL_TIMEOUT_IN_MS"
	KeepAliveTimeout          = "_KEEP_ALIVE_TIMEOUT_IN_MS"
	MaxIdleConnections        = "_MAX_IDLE_CONNS"
	MaxIdleConnectionsPerHost = "_MAX_IDLE_CONNS_PER_HOST"
	IdleConnectionTimeout     = "_IDLE_CONN_TIMEOUT_IN_MS"
)

const (
	HeaderContentType          = "Content-Type"
	HeaderValueApplicationJson = "application/json"

	HeaderCallerId      = "iris-caller-id"
	HeaderAuthToken     = "iris-auth-token"
	HeaderRequestId     = "iris-request-id"
	HeaderClientVersion = "iris-client-version"
	HeaderApiKey        = "api-key"
)

// BuildHttpUrl builds a http url from the given host, port and path
func BuildHttpUrl(host string, port int, path string) string {
	return fmt.Sprintf("http://%s:%d%s", host, port, path)
}

// isStandardClass reports whether code is a status the stdlib knows in the
// given hundreds class. Unassigned codes inside the class range do not count.
func isStandardClass(code, class int) bool {
	return code/100 == class && http.StatusText(code) != ""
}

func IsStandard2xx(code int) bool { return isStandardClass(code, 2) }

func IsStandard3xx(code int) bool { return isStandardClass(code, 3) }

func IsStandard4xx(code int) bool { return isStandardClass(code, 4) }

func IsStandard5xx(code int) bool { return isStandardClass(code, 5) }
