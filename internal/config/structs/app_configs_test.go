package structs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAppConfig_Singleton(t *testing.T) {
	first := GetAppConfig()
	second := GetAppConfig()
	assert.NotNil(t, first)
	assert.Same(t, first, second)
}

func TestAppConfig_ConfigAccessors(t *testing.T) {
	cfg := GetAppConfig()

	t.Run("static", func(t *testing.T) {
		static := cfg.GetStaticConfig()
		assert.NotNil(t, static)
		_, ok := static.(*Configs)
		assert.True(t, ok)
	})

	t.Run("dynamic", func(t *testing.T) {
		dynamic := cfg.GetDynamicConfig()
		assert.NotNil(t, dynamic)
		_, ok := dynamic.(*DynamicConfigs)
		assert.True(t, ok)
	})
}
