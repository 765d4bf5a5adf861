package logger

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
)

var (
	once        sync.Once
	initialized = false
	appName     = ""
	signalChan  = make(chan os.Signal, 1)
)

var levelsByName = map[string]zerolog.Level{
	"DEBUG":    zerolog.DebugLevel,
	"INFO":     zerolog.InfoLevel,
	"WARN":     zerolog.WarnLevel,
	"ERROR":    zerolog.ErrorLevel,
	"FATAL":    zerolog.FatalLevel,
	"PANIC":    zerolog.PanicLevel,
	"DISABLED": zerolog.Disabled,
}

// InitLogger initializes the logger with an explicit app name and log level,
// for callers that don't carry them in viper config.
func InitLogger(appName, logLevel string) {
	if len(appName) == 0 {
		panic("app name is not set")
	}
	if len(logLevel) == 0 {
		log.Warn().Msg("Log level not set, defaulting to WARN")
		logLevel = "WARN"
	}
	initLogger(appName, logLevel)
}

// Init initializes the logger from APP_NAME and APP_LOG_LEVEL in viper.
func Init() {
	appName = viper.GetString("APP_NAME")
	logLevel := viper.GetString("APP_LOG_LEVEL")
	if len(appName) == 0 {
		panic("APP_NAME is not set")
	}
	if len(logLevel) == 0 {
		panic("APP_LOG_LEVEL is not set")
	}
	InitLogger(appName, logLevel)
}

func initLogger(appName, logLevel string) {
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	rbSize := -1
	drainingInterval := 5 * time.Millisecond
	if viper.IsSet("LOG_RB_SIZE") {
		rbSize = viper.GetInt("LOG_RB_SIZE")
		drainingInterval = viper.GetDuration("LOG_RB_DRAINING_INTERVAL")
	}

	if initialized {
		log.Debug().Msg("logger already initialized")
		return
	}
	once.Do(func() {
		setLogLevel(logLevel)

		// Console output mirrors the JVM services' log4j pattern:
		// date - [LEVEL] - [file::line] - [pid, thread] - (trace_id,span_id) - [user] - () - msg
		log.Logger = log.With().
			Caller().
			Str("processInfo", fmt.Sprintf("- [%d, ] -", os.Getpid())).
			Logger()

		log.Logger = log.Output(consoleWriter(logWriter(rbSize, drainingInterval)))
		log.Logger = log.With().Caller().Logger()

		// Go has no cheap method-name lookup, so the caller segment renders
		// as [file_name::line_number].
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			parts := strings.Split(file, "/")
			return fmt.Sprintf("[%s::%d]", parts[len(parts)-1], line)
		}

		log.Logger = log.Logger.Hook(TraceHook{}, CustomHook{})

		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return fmt.Sprintf("%s\n%s", err, debug.Stack())
		}

		initialized = true
		log.Info().Msg("logger initialized")
	})
}

// logWriter returns the log sink: stdout directly, or a diode ring buffer in
// front of stdout when LOG_RB_SIZE is set. The ring buffer is closed (which
// drains it) when a shutdown signal arrives.
func logWriter(rbSize int, drainingInterval time.Duration) io.Writer {
	if rbSize <= 0 {
		return os.Stdout
	}
	metric.Incr("log_rb_initialized", []string{})
	log.Info().Msgf("Initializing logger with ring buffer size: %d", rbSize)

	var dropWarnOnce sync.Once
	dw := diode.NewWriter(os.Stdout, rbSize, drainingInterval, func(missed int) {
		metric.Count("log_rb_dropped", int64(missed), []string{})
		dropWarnOnce.Do(func() {
			fmt.Fprintf(os.Stderr, "Error from Logger: dropping logs due to buffer overflow\n")
		})
	})
	go func() {
		<-signalChan
		fmt.Fprintf(os.Stdout, "Received signal, closing logger\n")
		_ = dw.Close()
	}()
	return dw
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       true,
		TimeFormat:    "2006-01-02 15:04:05.000",
		FormatLevel:   func(i interface{}) string { return strings.ToUpper(fmt.Sprintf("- [%-5s] -", i)) },
		FormatCaller:  func(i interface{}) string { return fmt.Sprintf("%s", i) },
		FormatMessage: func(i interface{}) string { return fmt.Sprintf("%s", i) },
		FieldsExclude: []string{
			"processInfo",
			"traceInfo",
			"extraInfo",
		},
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			"processInfo",
			"traceInfo",
			"extraInfo",
			zerolog.MessageFieldName,
		},
	}
}

func setLogLevel(logLevel string) {
	level, ok := levelsByName[logLevel]
	if !ok {
		log.Panic().Msgf("Incorrect log level - %s", logLevel)
	}
	zerolog.SetGlobalLevel(level)
}

// TraceHook injects the otel trace and span ids of the event's context into
// the traceInfo segment.
type TraceHook struct{}

func (h TraceHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	spanContext := trace.SpanFromContext(e.GetCtx()).SpanContext()
	traceId, spanId := "", ""
	if spanContext.HasTraceID() {
		traceId = spanContext.TraceID().String()
	}
	if spanContext.HasSpanID() {
		spanId = spanContext.SpanID().String()
	}
	e.Str("traceInfo", fmt.Sprintf("(,)|(%s,%s)", traceId, spanId))
}

// CustomHook fills the extraInfo segment. The context id and field map are
// placeholders until request-scoped values land in the context.
type CustomHook struct{}

func (h CustomHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	contextId := ""
	extraInfoMap := make(map[string]string)
	e.Str("extraInfo", fmt.Sprintf("- [%s] - (%s) -", contextId, mapToString(extraInfoMap)))
}

func mapToString(fields map[string]string) string {
	pairs := make([]string, 0, len(fields))
	for key, value := range fields {
		pairs = append(pairs, key+"="+value)
	}
	return strings.Join(pairs, ",")
}
