package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config value such as "debug" or "WARN" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is the logging surface used by the CLI. Args are alternating
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // defaults to os.Stderr
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	mu         sync.Mutex
	level      Level
	jsonOutput bool
	out        io.Writer
	colors     bool
}

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &DefaultLogger{
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		out:        out,
		colors:     IsTerminal(out),
	}
}

// IsTerminal reports whether w is a terminal that accepts colour output.
// NO_COLOR disables colours everywhere.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// eachPair calls fn for every key/value pair in args. Errors are rendered
// by their message.
func eachPair(args []interface{}, fn func(key string, value interface{})) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		value := args[i+1]
		if err, isErr := value.(error); isErr {
			value = err.Error()
		}
		fn(key, value)
	}
}

// formatMessage renders args as key=value pairs after msg.
func formatMessage(msg string, args ...interface{}) string {
	var sb strings.Builder
	sb.WriteString(msg)
	eachPair(args, func(key string, value interface{}) {
		fmt.Fprintf(&sb, " %s=%v", key, value)
	})
	return sb.String()
}

// fields turns key/value args into a JSON object body.
func fields(args []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args)/2)
	eachPair(args, func(key string, value interface{}) { out[key] = value })
	return out
}

var levelColors = map[Level]string{
	DebugLevel: "\033[36m",
	InfoLevel:  "\033[32m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
}

func (l *DefaultLogger) log(level Level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	if l.jsonOutput {
		entry := fields(args)
		entry["timestamp"] = timestamp
		entry["level"] = level.String()
		entry["message"] = msg
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.out, string(data))
		return
	}

	line := formatMessage(msg, args...)
	if l.colors {
		line = levelColors[level] + line + "\033[0m"
	}
	fmt.Fprintf(l.out, "[%s] %s: %s\n", timestamp, level, line)
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(DebugLevel, msg, args) }
func (l *DefaultLogger) Info(msg string, args ...interface{})  { l.log(InfoLevel, msg, args) }
func (l *DefaultLogger) Warn(msg string, args ...interface{})  { l.log(WarnLevel, msg, args) }
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(ErrorLevel, msg, args) }

// SetLevel drops messages below level.
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonOutput = enabled
}

const spinnerFrames = `|/-\`

// ProgressSpinner shows a spinner with a message on a terminal. On anything
// else it stays silent.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	current int
	writer  io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressSpinner creates a spinner writing to w.
func NewProgressSpinner(w io.Writer, message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		writer:  w,
		enabled: IsTerminal(w),
	}
}

// Start animates the spinner until Stop. It does nothing off a terminal.
func (p *ProgressSpinner) Start() {
	if !p.enabled {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.animate()
}

// Stop stops the spinner and clears its line
func (p *ProgressSpinner) Stop() {
	if !p.enabled || p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop = nil
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message replaces the text shown next to the spinner.
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate() {
	defer close(p.done)

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			frame := spinnerFrames[p.current%len(spinnerFrames)]
			p.current++
			fmt.Fprintf(p.writer, "\r\033[36m%c\033[0m %s", frame, p.message)
			p.mu.Unlock()
		case <-p.stop:
			return
		}
	}
}
