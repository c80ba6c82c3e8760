package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func init() {
	logFlags := log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stdout, "ERROR: ", logFlags)
	Debug = log.New(os.Stdout, "DEBUG: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)

	SetLevel(LevelInfo)
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLevel discards every logger below level. Error is never silenced.
func SetLevel(level Level) {
	SetOutput(os.Stdout, level)
}

// SetOutput points the enabled loggers at w.
func SetOutput(w io.Writer, level Level) {
	pick := func(l Level) io.Writer {
		if l < level {
			return io.Discard
		}
		return w
	}
	Debug.SetOutput(pick(LevelDebug))
	Info.SetOutput(pick(LevelInfo))
	Warn.SetOutput(pick(LevelWarn))
	Error.SetOutput(w)
}
