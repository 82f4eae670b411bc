// Package log holds the process wide zerolog logger and the helpers used
// across the node to write structured logs.
package log

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	logger   zerolog.Logger
	loggerMu sync.RWMutex

	levels = map[string]zerolog.Level{
		LogLevelDebug: zerolog.DebugLevel,
		LogLevelInfo:  zerolog.InfoLevel,
		LogLevelWarn:  zerolog.WarnLevel,
		LogLevelError: zerolog.ErrorLevel,
	}

	// LOG_PANIC_ON_INVALIDCHARS=true makes any log line carrying U+FFFD
	// panic, which points at a format verb mismatch.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	if err := Init(cmp.Or(os.Getenv("LOG_LEVEL"), LogLevelError), "stderr", nil); err != nil {
		panic(err)
	}
}

// Logger returns a copy of the global logger.
func Logger() *zerolog.Logger {
	l := current()
	return &l
}

func current() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func replace(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// ParseLevel returns the zerolog level named by level.
func ParseLevel(level string) (zerolog.Level, error) {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

// Init replaces the global logger. output is stdout, stderr or a file path;
// a path ending in .json receives raw JSON lines while the console output
// goes to stdout. Warnings and errors are also copied to errorOutput when it
// is not nil.
func Init(level, output string, errorOutput io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	writers, err := outputWriters(output)
	if err != nil {
		return err
	}
	if errorOutput != nil {
		writers = append(writers, &warnLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: RFC3339Milli,
			NoColor:    true,
		}})
	}
	if panicOnInvalidChars {
		writers = append(writers, zerolog.ConsoleWriter{Out: invalidCharChecker{}})
	}
	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	// skip the frames of this package
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
	replace(l)
	l.Debug().Msgf("logger ready at level %s with output %s", level, output)
	return nil
}

func outputWriters(output string) ([]io.Writer, error) {
	console := func(w io.Writer) io.Writer {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: RFC3339Milli}
	}
	switch output {
	case "stdout":
		return []io.Writer{console(os.Stdout)}, nil
	case "stderr", "":
		return []io.Writer{console(os.Stderr)}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot open log output: %w", err)
	}
	if strings.HasSuffix(output, ".json") {
		return []io.Writer{console(os.Stdout), f}, nil
	}
	return []io.Writer{console(f)}, nil
}

// Level returns the name of the current log level.
func Level() string {
	lvl := current().GetLevel()
	for name, l := range levels {
		if l == lvl {
			return name
		}
	}
	return lvl.String()
}

// warnLevelWriter only forwards warnings and errors.
type warnLevelWriter struct {
	io.Writer
}

var _ zerolog.LevelWriter = (*warnLevelWriter)(nil)

func (w *warnLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

type invalidCharChecker struct{}

func (invalidCharChecker) Write(p []byte) (int, error) {
	if bytes.ContainsRune(p, '\uFFFD') {
		panic(fmt.Sprintf("log line with invalid chars: %q", string(p)))
	}
	return len(p), nil
}

// panicOnErrorHook calls its handler once, after a delay, when an error is
// logged. Integration tests use it to fail on unexpected errors.
type panicOnErrorHook struct {
	testName string
	delay    time.Duration
	handler  func(string)
	once     sync.Once
}

func (h *panicOnErrorHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel {
		return
	}
	text := fmt.Sprintf("ERROR found in logs during test %s: %s", h.testName, msg)
	h.once.Do(func() {
		time.AfterFunc(h.delay, func() { h.handler(text) })
	})
}

// EnablePanicOnError makes the logger panic one second after the first error
// log. It returns the previous logger for RestoreLogger.
func EnablePanicOnError(testName string) zerolog.Logger {
	return EnablePanicOnErrorWithHandler(testName, time.Second, nil)
}

// EnablePanicOnErrorWithHandler is EnablePanicOnError with a custom delay and
// handler. A nil handler panics.
func EnablePanicOnErrorWithHandler(testName string, delay time.Duration, handler func(string)) zerolog.Logger {
	if delay <= 0 {
		delay = time.Second
	}
	if handler == nil {
		handler = func(msg string) { panic(msg) }
	}
	prev := current()
	replace(prev.Hook(&panicOnErrorHook{testName: testName, delay: delay, handler: handler}))
	return prev
}

// RestoreLogger installs a logger returned by EnablePanicOnError.
func RestoreLogger(prev zerolog.Logger) {
	replace(prev)
}

// Monitor logs args as fields at info level, without caller information.
func Monitor(msg string, args map[string]any) {
	l := current()
	l.Info().CallerSkipFrame(100).Fields(args).Msg(msg)
}

// Debugw logs msg at debug level with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	l := current()
	l.Debug().Fields(keyvalues).Msg(msg)
}

// Infow logs msg at info level with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	l := current()
	l.Info().Fields(keyvalues).Msg(msg)
}

// Warnw logs msg at warn level with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	l := current()
	l.Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs err at error level.
func Errorw(err error, msg string) {
	l := current()
	l.Error().Err(err).Msg(msg)
}

// Infof logs a formatted message at info level.
func Infof(template string, args ...any) {
	l := current()
	l.Info().Msgf(template, args...)
}

// Fatalf logs a formatted message with the stack trace and exits.
func Fatalf(template string, args ...any) {
	l := current()
	l.Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}
