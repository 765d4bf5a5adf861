package config

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	HeaderEnvironment    = "environment"
	HeaderDeployableName = "deployable-name"
)

// ConfigValidator returns a handler that checks a JSON body of key-value
// pairs against the static config of the environment and deployable named
// in the request headers. Keys absent from the config come back as
// missing_keys, keys whose value differs as mismatched_keys, with HTTP 400.
// Mount it on the framework router, e.g.
//
//	httpframework.Instance().POST("/v1/validate-config", config.ConfigValidator())
func ConfigValidator() gin.HandlerFunc {
	return func(c *gin.Context) {
		environment := c.GetHeader(HeaderEnvironment)
		deployableName := c.GetHeader(HeaderDeployableName)
		if environment == "" || deployableName == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"message": "Headers 'environment' and 'deployable-name' are required",
			})
			return
		}

		var requestBody map[string]interface{}
		if err := c.ShouldBindJSON(&requestBody); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"message": "Invalid JSON body",
			})
			return
		}

		dir := viper.GetString(envConfigLocation)
		if dir == "" {
			dir = "/opt/config"
		}
		staticPath := fmt.Sprintf("%s/application-%s.yml", dir, environment)

		var staticConfig map[string]interface{}
		if err := loadStaticConfig(staticPath, &staticConfig, deployableName); err != nil {
			log.Error().Err(err).Msg("Failed to load static config")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load static configuration file",
			})
			return
		}

		missingKeys, mismatchedKeys := diffAgainstLoadedConfig(requestBody)
		if len(missingKeys) > 0 || len(mismatchedKeys) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"missing_keys":    missingKeys,
				"mismatched_keys": mismatchedKeys,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Config is valid",
		})
	}
}

// diffAgainstLoadedConfig compares the request's keys with whatever
// loadStaticConfig just registered in viper. Values are compared through
// their string forms since headers and YAML both arrive untyped.
func diffAgainstLoadedConfig(requestBody map[string]interface{}) (missingKeys, mismatchedKeys []string) {
	for key, value := range requestBody {
		if !viper.IsSet(key) {
			missingKeys = append(missingKeys, key)
			continue
		}
		if viper.GetString(key) != fmt.Sprintf("%v", value) {
			mismatchedKeys = append(mismatchedKeys, key)
		}
	}
	return missingKeys, mismatchedKeys
}
