package api

import "github.com/Meesho/BharatMLStack/iris/pkg/httpframework"

const HeathCheckPath = "/health"

// Init registers the consumer pod's probe route. Consumers expose no other
// HTTP surface, ingestion happens entirely through kafka.
func Init() {
	httpframework.Instance().GET(HeathCheckPath, healthProvider)
}
