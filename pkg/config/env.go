package config

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	envOnce        sync.Once
	envInitialized bool
)

// InitEnv makes every environment variable resolvable through viper. Safe to
// call from multiple init paths; only the first call does anything.
func InitEnv() {
	if envInitialized {
		log.Debug().Msg("env already initialized")
		return
	}
	envOnce.Do(func() {
		viper.AutomaticEnv()
		envInitialized = true
		log.Info().Msg("env initialized")
	})
}
