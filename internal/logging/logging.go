// Package logging configures the process-wide zerolog logger: console output,
// optional rotated file output (via lumberjack), and a Prometheus hook
// counting log lines per level.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

func init() {
	zerolog.TimeFieldFormat = RFC3339Milli
	zerolog.CallerMarshalFunc = shortCallerMarshalFunc
}

// MustConfigure sets up process-wide logging from cfg, exiting the process on
// failure since there is no sensible way to run without a working logger.
func MustConfigure(cfg Config) {
	if err := Configure(cfg); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error initializing logging: "+err.Error())
		os.Exit(1)
	}
}

// Configure sets up process-wide logging from cfg and installs it as the
// zerolog global logger.
func Configure(cfg Config) error {
	if err := validate(cfg); err != nil {
		return err
	}

	var writers []io.Writer

	consoleLevel, err := zerolog.ParseLevel(strings.ToLower(cfg.Console.Level))
	if err != nil {
		return err
	}
	writers = append(writers, levelWriter{level: consoleLevel, writer: consoleWriter(os.Stdout, LogFormat(cfg.Console.Format))})

	if cfg.File.Enabled {
		fileLevel, err := zerolog.ParseLevel(strings.ToLower(cfg.File.Level))
		if err != nil {
			return err
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File.LogFile,
			MaxSize:    cfg.File.Rotation.MaxSizeMb,
			MaxBackups: cfg.File.Rotation.MaxBackups,
			MaxAge:     cfg.File.Rotation.MaxAgeDays,
			Compress:   cfg.File.Rotation.Compress,
		}
		var out io.Writer = lj
		if LogFormat(cfg.File.Format) != FormatJSON {
			out = consoleWriter(lj, LogFormat(cfg.File.Format))
		}
		writers = append(writers, levelWriter{level: fileLevel, writer: out})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Hook(NewPrometheusHook()).
		With().Timestamp().Caller().Logger()

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	Root = logger
	return nil
}

// Root is the process-wide default logger. Commands derive per-operation
// loggers from it via hscontext.WithField rather than mutating it directly.
var Root = zerolog.New(os.Stderr).With().Timestamp().Logger()

func consoleWriter(out io.Writer, format LogFormat) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: RFC3339Milli,
		NoColor:    format == FormatText,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%-5s", i))
		},
		FormatCaller: func(i interface{}) string {
			return filepath.Base(fmt.Sprintf("%s", i))
		},
	}
}

// levelWriter filters out events below a minimum level before delegating to
// the wrapped writer, allowing console and file sinks to run at different
// verbosities from the same logger.
type levelWriter struct {
	level  zerolog.Level
	writer io.Writer
}

func (w levelWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

func (w levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.level {
		return len(p), nil
	}
	return w.writer.Write(p)
}

func shortCallerMarshalFunc(pc uintptr, file string, line int) string {
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", short, line)
}

// NewPrometheusHook creates and registers Prometheus counters tracking the
// number of log lines emitted per level; a later call reuses the counters
// already registered.
func NewPrometheusHook() *PrometheusHook {
	counters := make(map[zerolog.Level]prometheus.Counter)
	for _, level := range []zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel} {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hailstorm_log_messages_total",
			Help:        "Total number of log lines logged by level",
			ConstLabels: prometheus.Labels{"level": level.String()},
		})
		if err := prometheus.Register(counter); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			counter = already.ExistingCollector.(prometheus.Counter)
		}
		counters[level] = counter
	}
	return &PrometheusHook{counters: counters}
}

type PrometheusHook struct {
	counters map[zerolog.Level]prometheus.Counter
}

func (h *PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if counter, ok := h.counters[level]; ok {
		counter.Inc()
	}
}
