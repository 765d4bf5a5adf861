package httpframework

import (
	"os"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	router *gin.Engine
	once   sync.Once
)

// Init builds the shared gin engine once. The otel, request logging and
// recovery middlewares always run last in the chain, after any the caller
// passes in. Release mode is switched on for prod environments.
func Init(middlewares ...gin.HandlerFunc) {
	once.Do(func() {
		switch os.Getenv("APP_ENV") {
		case "prod", "production":
			gin.SetMode(gin.ReleaseMode)
		}

		appName := viper.GetString("APP_NAME")
		if appName == "" {
			log.Fatal().Msg("APP_NAME cannot be empty")
		}

		router = gin.New()
		chain := append(middlewares, otelgin.Middleware(appName), middleware.HTTPLogger(), middleware.HTTPRecovery())
		router.Use(chain...)
	})
}

// Instance returns the shared engine. Init must have run first.
func Instance() *gin.Engine {
	if router == nil {
		log.Fatal().Msg("router not initialized, call Init first")
	}
	return router
}
