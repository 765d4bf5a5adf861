package metric

const (
	TagEnv                   = "env"
	TagService               = "service"
	TagPath                  = "path"
	TagMethod                = "method"
	TagHttpStatusCode        = "http_status_code"
	TagGrpcStatusCode        = "grpc_status_code"
	TagCallerId              = "caller_id"
	TagExternalService       = "external_service"
	TagCommunicationProtocol = "communication_protocol"

	TagValueCommunicationProtocolHttp = "http"
	TagValueCommunicationProtocolGrpc = "grpc"
)

// Tag is a key-value pair rendered as "key:value" for statsd.
type Tag struct {
	Key   string
	Value string
}

func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

func TagAsString(key, value string) string {
	return key + ":" + value
}

// BuildTag renders tags into the alternating string form the statsd client expects.
func BuildTag(tags ...Tag) []string {
	rendered := make([]string, 0, len(tags))
	for _, t := range tags {
		rendered = append(rendered, TagAsString(t.Key, t.Value))
	}
	return rendered
}
