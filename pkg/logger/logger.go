// Package logger builds the zerolog logger used across acervo.
//
//	logData, err := logger.New().Level(cfg.LogLevel).Console(cfg.LogFormat == "console").Make()
//	if err != nil { ... }
//	defer logData.Close()
//	log := logData.Logger
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer  io.Writer
	path    string
	level   string
	console bool
	service string
}

type LogData struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

// FromPath appends logs to the file at path instead of the writer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level by name ("debug", "info", "warn", ...).
func (build *LogBuild) Level(level string) *LogBuild {
	build.level = level
	return build
}

// Console switches to human-readable output for local development.
func (build *LogBuild) Console(on bool) *LogBuild {
	build.console = on
	return build
}

// Service adds a "service" field to every entry.
func (build *LogBuild) Service(name string) *LogBuild {
	build.service = name
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	level, err := ParseLevel(build.level)
	if err != nil {
		return nil, err
	}

	logData = new(LogData)
	logData.writer = os.Stdout
	if build.writer != nil {
		logData.writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	}
	if build.console {
		logData.writer = zerolog.ConsoleWriter{Out: logData.writer, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(logData.writer).Level(level).With().Timestamp()
	if build.service != "" {
		ctx = ctx.Str("service", build.service)
	}
	logData.Logger = ctx.Logger()
	return logData, nil
}

// Close closes the log file, if any.
func (logData *LogData) Close() error {
	if logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}

// ParseLevel parses a level name. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
