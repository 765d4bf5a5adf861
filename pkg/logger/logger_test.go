package logger

import (
	"context"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func resetLoggerState() {
	viper.Reset()
	initialized = false
	once = sync.Once{}
}

// recovered runs fn and returns whatever it panicked with, nil otherwise.
func recovered(fn func()) (r interface{}) {
	defer func() { r = recover() }()
	fn()
	return nil
}

func TestInitLogger(t *testing.T) {
	t.Run("valid app name and level", func(t *testing.T) {
		resetLoggerState()
		if r := recovered(func() { InitLogger("test_app", "INFO") }); r != nil {
			t.Errorf("InitLogger panicked: %v", r)
		}
		if !initialized {
			t.Error("Logger should be initialized")
		}
	})

	t.Run("empty app name panics", func(t *testing.T) {
		resetLoggerState()
		if recovered(func() { InitLogger("", "INFO") }) == nil {
			t.Error("InitLogger should panic with empty app name")
		}
	})

	t.Run("empty log level falls back to WARN", func(t *testing.T) {
		resetLoggerState()
		InitLogger("test_app", "")
		if !initialized {
			t.Error("Logger should be initialized with default log level")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("reads name and level from viper", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		viper.Set("APP_LOG_LEVEL", "DEBUG")
		if r := recovered(Init); r != nil {
			t.Errorf("Init panicked: %v", r)
		}
		if !initialized {
			t.Error("Logger should be initialized")
		}
	})

	t.Run("missing APP_NAME panics", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_LOG_LEVEL", "INFO")
		if recovered(Init) == nil {
			t.Error("Init should panic with missing APP_NAME")
		}
	})

	t.Run("missing APP_LOG_LEVEL panics", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		if recovered(Init) == nil {
			t.Error("Init should panic with missing APP_LOG_LEVEL")
		}
	})

	t.Run("second Init is a no-op", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		viper.Set("APP_LOG_LEVEL", "INFO")
		Init()
		Init()
		if !initialized {
			t.Error("Logger should remain initialized")
		}
	})
}

func TestSetLogLevel(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL", "PANIC", "DISABLED"} {
		t.Run(level, func(t *testing.T) {
			if r := recovered(func() { setLogLevel(level) }); r != nil {
				t.Errorf("setLogLevel panicked for valid level %s: %v", level, r)
			}
		})
	}
	t.Run("INVALID", func(t *testing.T) {
		if recovered(func() { setLogLevel("INVALID") }) == nil {
			t.Error("setLogLevel should have panicked for invalid level INVALID")
		}
	})
}

func TestHooks(t *testing.T) {
	event := log.Ctx(context.Background()).Info()

	if r := recovered(func() { TraceHook{}.Run(event, zerolog.InfoLevel, "test message") }); r != nil {
		t.Errorf("TraceHook.Run panicked: %v", r)
	}
	if r := recovered(func() { CustomHook{}.Run(event, zerolog.InfoLevel, "test message") }); r != nil {
		t.Errorf("CustomHook.Run panicked: %v", r)
	}
}

func TestMapToString(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]string
		want  []string // expected key=value pairs, order-independent
	}{
		{"empty map", map[string]string{}, nil},
		{"single entry", map[string]string{"key1": "value1"}, []string{"key1=value1"}},
		{"multiple entries", map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"},
			[]string{"key1=value1", "key2=value2", "key3=value3"}},
		{"empty values", map[string]string{"key1": "", "key2": "value2"}, []string{"key1=", "key2=value2"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := mapToString(test.input)
			var got []string
			if result != "" {
				got = strings.Split(result, ",")
			}
			sort.Strings(got)
			want := append([]string(nil), test.want...)
			sort.Strings(want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("mapToString() = %q, want pairs %v", result, test.want)
			}
		})
	}
}

func TestLoggerRingBuffer(t *testing.T) {
	t.Run("initializes with ring buffer", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		viper.Set("APP_LOG_LEVEL", "INFO")
		viper.Set("LOG_RB_SIZE", 100)
		viper.Set("LOG_RB_DRAINING_INTERVAL", "5ms")
		if r := recovered(Init); r != nil {
			t.Errorf("Init with ring buffer panicked: %v", r)
		}
		if !initialized {
			t.Error("Logger should be initialized with ring buffer")
		}
	})

	t.Run("initializes without ring buffer", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		viper.Set("APP_LOG_LEVEL", "INFO")
		if r := recovered(Init); r != nil {
			t.Errorf("Init without ring buffer panicked: %v", r)
		}
		if !initialized {
			t.Error("Logger should be initialized without ring buffer")
		}
	})

	t.Run("overflow warns on stderr and keeps logging", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		viper.Set("APP_LOG_LEVEL", "INFO")
		viper.Set("LOG_RB_SIZE", 3) // tiny buffer so the burst overflows
		viper.Set("LOG_RB_DRAINING_INTERVAL", "100ms")

		originalStderr := os.Stderr
		r, w, _ := os.Pipe()
		os.Stderr = w

		Init()
		for i := 0; i < 100; i++ {
			log.Info().Msgf("Test message %d", i)
		}
		time.Sleep(200 * time.Millisecond)

		w.Close()
		os.Stderr = originalStderr

		buf := make([]byte, 1024)
		n, _ := r.Read(buf)
		r.Close()

		if !strings.Contains(string(buf[:n]), "Error from Logger: dropping logs due to buffer overflow") {
			// Timing dependent, so only log when the warning didn't land.
			t.Logf("overflow warning not captured: %q", string(buf[:n]))
		}

		if r := recovered(func() { log.Info().Msg("Logging after potential overflow") }); r != nil {
			t.Errorf("Logging panicked after overflow: %v", r)
		}
	})

	t.Run("fast drain keeps up with a burst", func(t *testing.T) {
		resetLoggerState()
		viper.Set("APP_NAME", "test_app")
		viper.Set("APP_LOG_LEVEL", "INFO")
		viper.Set("LOG_RB_SIZE", 1000)
		viper.Set("LOG_RB_DRAINING_INTERVAL", "1ms")

		Init()
		panicked := recovered(func() {
			for i := 0; i < 100; i++ {
				log.Info().Msgf("Normal message %d", i)
			}
		})
		if panicked != nil {
			t.Errorf("Logger panicked during normal operation: %v", panicked)
		}
		time.Sleep(50 * time.Millisecond)
		log.Info().Msg("Logger functional after burst")
	})
}

func TestLoggingOutput(t *testing.T) {
	resetLoggerState()
	viper.Set("APP_NAME", "test_app")
	viper.Set("APP_LOG_LEVEL", "INFO")
	Init()

	// Output shape is covered by eyeballing; this only guards against panics
	// in the hook chain and console writer.
	panicked := recovered(func() {
		log.Info().Msg("Test log message")
		log.Warn().Msg("Test warning message")
		log.Error().Msg("Test error message")
	})
	if panicked != nil {
		t.Errorf("Logging panicked: %v", panicked)
	}
}
