package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var placeholderPattern = regexp.MustCompile(`\${([^}]+)}`)

// Init reads YAML from the given reader into viper, resolves ${VAR}
// placeholders from the environment and unmarshals the result into yamlConf.
// Panics on unreadable config or unresolved placeholders.
func Init(yamlConf interface{}, yamlConfigReader io.Reader) {
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(yamlConfigReader); err != nil {
		panic(fmt.Errorf("failed to read the configuration file: %w", err))
	}

	replaceEnvVarPlaceholders(viper.GetViper())
	viper.AutomaticEnv()

	if err := viper.Unmarshal(yamlConf); err != nil {
		panic(fmt.Errorf("failed to unmarshal configuration: %w", err))
	}
	log.Info().Msg("viper config loaded")
}

// replaceEnvVarPlaceholders substitutes every ${VAR} in string values with
// the environment value of VAR. All placeholders are resolved before
// panicking so the message lists every missing variable at once.
func replaceEnvVarPlaceholders(v *viper.Viper) {
	missedEnvVars := make([]string, 0)
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		for _, match := range placeholderPattern.FindAllStringSubmatch(value, -1) {
			envVarValue := os.Getenv(match[1])
			if len(envVarValue) == 0 {
				missedEnvVars = append(missedEnvVars, match[1])
			}
			value = strings.ReplaceAll(value, match[0], envVarValue)
		}
		v.Set(key, value)
	}
	if len(missedEnvVars) != 0 {
		panic("missing environment variables: " + strings.Join(missedEnvVars, ","))
	}
}
