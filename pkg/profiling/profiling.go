package profiling

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	once        sync.Once
	initialized = false
)

// Init starts a pprof HTTP server on PROFILING_PORT when PROFILING_ENABLED is
// set. The net/http/pprof import registers its handlers on the default mux.
func Init() {
	if !viper.GetBool("PROFILING_ENABLED") {
		log.Info().Msg("profiling disabled")
		return
	}
	if initialized {
		log.Debug().Msg("profiling already initialized")
		return
	}
	once.Do(func() {
		port := viper.GetInt("PROFILING_PORT")
		if port == 0 {
			log.Fatal().Msg("PROFILING_PORT is not set")
		}
		serveProfiler(port)
		initialized = true
		log.Info().Msg("profiling initialized")
	})
}

func serveProfiler(port int) {
	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info().Msgf("profiling server listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatal().Msgf("profiling server failed: %v", err)
		}
	}()
}
