package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	levelNames = map[Level]string{
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
	}
	levelColors = map[Level]string{
		DEBUG: "\033[36m",
		INFO:  "\033[32m",
		WARN:  "\033[33m",
		ERROR: "\033[31m",
	}
	reset = "\033[0m"
)

// Logger 带级别和前缀的日志器，前缀 logger 与父 logger 共享级别
type Logger struct {
	mu       *sync.Mutex
	level    *Level
	out      io.Writer
	prefix   string
	useColor bool
}

var (
	std     *Logger
	stdOnce sync.Once
)

// New 创建独立的 logger，不影响全局实例（测试里传 io.Discard）
func New(out io.Writer, level string) *Logger {
	l := parseLevel(level)
	if out == nil {
		out = os.Stderr
	}
	return &Logger{mu: &sync.Mutex{}, level: &l, out: out}
}

func Init(level string, useColor bool) {
	stdOnce.Do(func() {
		std = New(os.Stderr, level)
		std.useColor = useColor
	})
}

func InitWithFile(level string, useColor bool, logFile string) {
	stdOnce.Do(func() {
		var out io.Writer = os.Stderr
		if logFile != "" {
			if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				out = file
				useColor = false
			}
		}
		std = New(out, level)
		std.useColor = useColor
	})
}

func Get() *Logger {
	if std == nil {
		Init("INFO", true)
	}
	return std
}

func SetLevel(level string) {
	g := Get()
	g.mu.Lock()
	defer g.mu.Unlock()
	*g.level = parseLevel(level)
}

func parseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func Debug(format string, v ...interface{}) { Get().log(DEBUG, format, v...) }
func Info(format string, v ...interface{})  { Get().log(INFO, format, v...) }
func Warn(format string, v ...interface{})  { Get().log(WARN, format, v...) }
func Error(format string, v ...interface{}) { Get().log(ERROR, format, v...) }

func Fatal(format string, v ...interface{}) {
	Get().log(ERROR, format, v...)
	os.Exit(1)
}

func (l *Logger) Debug(format string, v ...interface{}) { l.log(DEBUG, format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.log(INFO, format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.log(WARN, format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.log(ERROR, format, v...) }

// WithPrefix 在全局 logger 上派生一个带组件前缀的 logger
func WithPrefix(prefix string) *Logger {
	return Get().WithPrefix(prefix)
}

func (l *Logger) WithPrefix(prefix string) *Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + "/" + prefix
	} else {
		child.prefix = prefix
	}
	return &child
}

func (l *Logger) log(level Level, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < *l.level {
		return
	}

	msg := fmt.Sprintf(format, v...)
	levelStr := levelNames[level]

	var output string
	if l.useColor {
		output = fmt.Sprintf("%s[%s]%s %s", levelColors[level], levelStr, reset, msg)
	} else {
		output = fmt.Sprintf("[%s] %s", levelStr, msg)
	}
	if l.prefix != "" {
		output = fmt.Sprintf("[%s] %s", l.prefix, output)
	}

	fmt.Fprintf(l.out, "%s %s\n", time.Now().Format("2006/01/02 15:04:05"), output)
}
