package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Meesho/BharatMLStack/iris/pkg/config/configutils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPodNamespace                = "POD_NAMESPACE"
	envConfigLocation              = "CONFIG_LOCATION"
	envEnvironment                 = "ENVIRONMENT"
	envDeployableName              = "DEPLOYABLE_NAME"
	configKeyDynamicSource         = "dynamic-config.source"
	configKeyDynamicSourceVersion  = "dynamic-config.version"
	configKeyDynamicSourceOptional = "dynamic-config.optional"
)

// GlobalConf exposes the two config targets every deployable carries: the
// static struct hydrated once at boot, and the dynamic struct that a config
// source may refresh at runtime.
type GlobalConf interface {
	GetStaticConfig() interface{}
	GetDynamicConfig() interface{}
}

// InitGlobalConfig loads application-<env>.yml into the static config and
// application-dyn-<env>.yml into the dynamic config. Environment and
// deployable name come from POD_NAMESPACE ("<env>-<deployable>") or from the
// ENVIRONMENT and DEPLOYABLE_NAME variables.
func InitGlobalConfig(conf GlobalConf) {
	InitEnv()

	environment, deployableName := getEnvironmentAndDeployableName()

	dir := viper.GetString(envConfigLocation)
	if dir == "" {
		dir = "/opt/config"
	}

	staticPath := fmt.Sprintf("%s/application-%s.yml", dir, environment)
	dynamicPath := fmt.Sprintf("%s/application-dyn-%s.yml", dir, environment)

	if err := loadStaticConfig(staticPath, conf.GetStaticConfig(), deployableName); err != nil {
		panic(fmt.Sprintf("static config load failed: %v", err))
	}
	if err := loadDynamicConfig(dynamicPath, conf.GetDynamicConfig(), deployableName); err != nil {
		panic(fmt.Sprintf("dynamic config load failed: %v", err))
	}
}

func loadStaticConfig(filePath string, config interface{}, deployableName string) error {
	data, err := readConfig(filePath, deployableName)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewBuffer(data)); err != nil {
		return fmt.Errorf("failed to read merged static config: %w", err)
	}
	replaceEnvVarPlaceholders(viper.GetViper())

	// Mirror every leaf under its SCREAMING_SNAKE key so env-style lookups
	// like DB_HOST resolve against file-provided values too.
	setFlattenedKeys(viper.AllSettings(), "")

	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal static config into struct: %w", err)
	}
	return nil
}

func loadDynamicConfig(filePath string, targetConfig interface{}, deployableName string) error {
	data, err := readConfig(filePath, deployableName)
	if err != nil {
		return err
	}

	var yamlConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to decode dynamic config yaml: %w", err)
	}

	// Flatten the YAML into slash paths with normalized keys (lowercase, no
	// dashes), then walk the target struct matching fields to paths. metaMap
	// keeps the original spelling for map keys.
	dataMap := make(map[string]string)
	metaMap := make(map[string]string)
	configutils.NestedMapToPathMap(yamlConfig, "", dataMap)
	configutils.NormalizePathMap(dataMap, metaMap)
	if err := configutils.MapToStruct(&dataMap, &metaMap, targetConfig, ""); err != nil {
		return fmt.Errorf("failed to map dynamic config onto struct: %w", err)
	}

	initializeDynamicConfigSource(targetConfig)
	return nil
}

func initializeDynamicConfigSource(config interface{}) {
	if !viper.IsSet(configKeyDynamicSource) {
		return
	}
	source := viper.GetString(configKeyDynamicSource)
	switch source {
	case "etcd":
		initializeEtcd(config)
	default:
		handleDynamicConfigError(fmt.Sprintf("Unknown dynamic config source: %s", source))
	}
}

func initializeEtcd(config interface{}) {
	version := viper.GetInt(configKeyDynamicSourceVersion)
	if version <= 0 {
		version = 1
	}
	// The etcd connection itself is wired from the application config init,
	// which owns the env-bound connection settings.
	log.Info().Msgf("Dynamic config source etcd v%d, hydration deferred to application config init", version)
}

func handleDynamicConfigError(message string) {
	if viper.GetBool(configKeyDynamicSourceOptional) {
		log.Error().Msg(message)
		return
	}
	log.Panic().Msg(message)
}

// readConfig reads a multi-document YAML file where the first document is
// the section shared by all deployables and later documents carry a
// deployable-name key. The deployable's own section is merged over the
// shared one and the result re-marshaled.
func readConfig(filePath, deployableName string) ([]byte, error) {
	sections, err := getSections(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config sections: %w", err)
	}
	if len(sections) == 0 {
		return nil, nil
	}

	base := sections[0]
	overlay := make(map[string]interface{})
	for _, section := range sections {
		if section["deployable-name"] == deployableName {
			overlay = section
			break
		}
	}

	data, err := yaml.Marshal(mergeMaps(overlay, base))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged section: %w", err)
	}
	return data, nil
}

func getSections(filePath string) ([]map[string]interface{}, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var sections []map[string]interface{}
	decoder := yaml.NewDecoder(file)
	for {
		var section map[string]interface{}
		if err := decoder.Decode(&section); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode config section: %w", err)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

// mergeMaps writes source entries over target, recursing when both sides
// hold a nested map under the same key. The target map is returned.
func mergeMaps(source, target map[string]interface{}) map[string]interface{} {
	for key, val := range source {
		if existing, ok := target[key]; ok {
			existingMap, existingIsMap := existing.(map[string]interface{})
			valMap, valIsMap := val.(map[string]interface{})
			if existingIsMap && valIsMap {
				target[key] = mergeMaps(valMap, existingMap)
				continue
			}
		}
		target[key] = val
	}
	return target
}

func getEnvironmentAndDeployableName() (string, string) {
	parts := strings.SplitN(viper.GetString(envPodNamespace), "-", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	if !viper.IsSet(envEnvironment) || !viper.IsSet(envDeployableName) {
		log.Panic().Msg("Environment and Deployable Name not set")
	}
	return viper.GetString(envEnvironment), viper.GetString(envDeployableName)
}

// setFlattenedKeys registers every leaf of settings in viper under its
// underscore form, so db.host becomes DB_HOST.
func setFlattenedKeys(settings map[string]interface{}, prefix string) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			setFlattenedKeys(nested, fullKey)
			continue
		}
		viper.Set(strings.ToUpper(strings.ReplaceAll(fullKey, ".", "_")), value)
	}
}
