package server

import (
	"net/http"
	"strconv"

	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
	"github.com/rs/zerolog/log"
)

// InitServer blocks serving the gin engine on the given port. Admin and
// consumer pods use this plain HTTP listener; serving multiplexes HTTP and
// gRPC through pkg/grpc instead.
func InitServer(port int) {
	if port == 0 {
		log.Panic().Msg("PORT not set")
	}

	log.Info().Msgf("Starting HTTP server on port %d", port)
	if err := http.ListenAndServe(":"+strconv.Itoa(port), httpframework.Instance()); err != nil {
		log.Panic().Msgf("There's an error while starting the server!, error - %v", err)
	}
}
