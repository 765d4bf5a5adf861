package grpc

import (
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
	"github.com/rs/zerolog/log"
	"github.com/soheilhy/cmux"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
)

// Server pairs a gRPC server with the HTTP handler that shares its port.
type Server struct {
	GRPCServer  *grpc.Server
	HTTPHandler http.Handler
}

var (
	server *Server
	once   sync.Once
)

// Init builds the process-wide gRPC server with the given unary
// interceptors. The HTTP side defaults to the httpframework engine,
// which must be initialized before Run is called.
func Init(interceptors ...grpc.UnaryServerInterceptor) {
	once.Do(func() {
		server = &Server{
			GRPCServer: grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...)),
		}
	})
}

// Instance returns the server built by Init.
func Instance() *Server {
	if server == nil {
		log.Panic().Msg("grpc server not initialized, call Init first")
	}
	return server
}

// Run serves gRPC and HTTP over one socket bound to APP_PORT. cmux splits
// the connections: HTTP/2 with the gRPC content-type goes to the gRPC
// server, everything else to the HTTP handler. Blocks until the
// multiplexer stops.
func (s *Server) Run() error {
	listener, port := listenOnAppPort()
	mux := cmux.New(listener)

	// Matcher order matters: the gRPC arm ends in Any, so the HTTP arm
	// must claim plain HTTP/1 connections first.
	httpListener := mux.Match(cmux.HTTP1Fast())
	grpcListener := mux.Match(
		cmux.HTTP2(),
		cmux.HTTP2HeaderField("content-type", "application/grpc"),
		cmux.Any(),
	)

	go s.serveGRPC(grpcListener)
	go s.serveHTTP(httpListener)

	log.Info().Msgf("http and grpc servers listening on port %d", port)
	return mux.Serve()
}

func listenOnAppPort() (net.Listener, int) {
	if !viper.IsSet("APP_PORT") {
		log.Panic().Msg("APP_PORT is not set")
	}
	port := viper.GetInt("APP_PORT")
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		log.Panic().Err(err).Msgf("failed to listen on port %d", port)
	}
	return listener, port
}

func (s *Server) serveGRPC(listener net.Listener) {
	if err := s.GRPCServer.Serve(listener); err != nil {
		log.Panic().Err(err).Msg("grpc server stopped")
	}
}

func (s *Server) serveHTTP(listener net.Listener) {
	handler := s.HTTPHandler
	if handler == nil {
		handler = httpframework.Instance()
	}
	if err := http.Serve(listener, handler); err != nil {
		log.Panic().Err(err).Msg("http server stopped")
	}
}
