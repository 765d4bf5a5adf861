package circuitbreaker

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func seedViper(keys map[string]interface{}) {
	viper.Reset()
	for key, value := range keys {
		viper.Set(key, value)
	}
}

func fullBreakerEnv() map[string]interface{} {
	return map[string]interface{}{
		"VECTORIZER" + CBEnabled:                  true,
		"VECTORIZER" + CBName:                     "vectorizer-http",
		"VECTORIZER" + CBVersion:                  1,
		"VECTORIZER" + CBFailureRateThreshold:     50,
		"VECTORIZER" + CBFailureRateMinimumWindow: 20,
		"VECTORIZER" + CBFailureRateWindowInMs:    10000,
		"VECTORIZER" + CBFailureCountThreshold:    5,
		"VECTORIZER" + CBFailureCountWindow:       10,
		"VECTORIZER" + CBSuccessCountThreshold:    75,
		"VECTORIZER" + CBSuccessCountWindow:       10,
		"VECTORIZER" + CBWithDelayInMS:            1000,
	}
}

func TestBuildConfig(t *testing.T) {
	t.Run("disabled when env is empty", func(t *testing.T) {
		viper.Reset()
		assert.False(t, BuildConfig("VECTORIZER").Enabled)
	})

	t.Run("loads every field when enabled", func(t *testing.T) {
		seedViper(fullBreakerEnv())
		config := BuildConfig("VECTORIZER")
		assert.True(t, config.Enabled)
		assert.Equal(t, "vectorizer-http", config.Name)
		assert.Equal(t, 1, config.Version)
		assert.Equal(t, 50, config.FailureRateThreshold)
		assert.Equal(t, 20, config.FailureRateMinimumWindow)
		assert.Equal(t, 10000, config.FailureRateWindowInMs)
		assert.Equal(t, 5, config.FailureCountThreshold)
		assert.Equal(t, 10, config.FailureCountWindow)
		assert.Equal(t, 75, config.SuccessCountThreshold)
		assert.Equal(t, 10, config.SuccessCountWindow)
		assert.Equal(t, 1000, config.WithDelayInMS)
	})

	t.Run("panics when enabled with nothing else set", func(t *testing.T) {
		seedViper(map[string]interface{}{"VECTORIZER" + CBEnabled: true})
		assert.Panics(t, func() { BuildConfig("VECTORIZER") })
	})
}

func TestBuildConfig_KeyValidation(t *testing.T) {
	// Time based thresholding only; the count based pair stays unset.
	timeBasedEnv := func() map[string]interface{} {
		env := fullBreakerEnv()
		delete(env, "VECTORIZER"+CBFailureCountThreshold)
		delete(env, "VECTORIZER"+CBFailureCountWindow)
		return env
	}

	for _, suffix := range []string{
		CBName,
		CBFailureRateMinimumWindow,
		CBFailureRateWindowInMs,
		CBSuccessCountThreshold,
		CBSuccessCountWindow,
		CBWithDelayInMS,
		CBVersion,
	} {
		t.Run("missing "+suffix, func(t *testing.T) {
			env := timeBasedEnv()
			delete(env, "VECTORIZER"+suffix)
			seedViper(env)
			assert.Panics(t, func() { BuildConfig("VECTORIZER") })
		})
	}

	t.Run("complete time based env passes", func(t *testing.T) {
		seedViper(timeBasedEnv())
		assert.NotPanics(t, func() { BuildConfig("VECTORIZER") })
	})

	t.Run("neither thresholding style set", func(t *testing.T) {
		env := timeBasedEnv()
		delete(env, "VECTORIZER"+CBFailureRateThreshold)
		seedViper(env)
		assert.Panics(t, func() { BuildConfig("VECTORIZER") })
	})

	t.Run("keys set but thresholds zero", func(t *testing.T) {
		// A zero count threshold passes the IsSet checks and must be caught
		// by the loaded-value validation instead.
		env := timeBasedEnv()
		delete(env, "VECTORIZER"+CBFailureRateThreshold)
		env["VECTORIZER"+CBFailureCountThreshold] = 0
		seedViper(env)
		assert.Panics(t, func() { BuildConfig("VECTORIZER") })
	})
}
