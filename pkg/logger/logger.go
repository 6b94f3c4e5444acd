package logger

import (
	"io"
	"log"
	"os"
)

type Logger struct {
	info  *log.Logger
	err   *log.Logger
	debug *log.Logger
}

func New() *Logger {
	return NewWithOutput(os.Stdout, os.Stderr)
}

// NewWithOutput directs info/debug and error output to the given writers.
func NewWithOutput(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		info:  log.New(out, "INFO: ", flags),
		err:   log.New(errOut, "ERROR: ", flags),
		debug: log.New(out, "DEBUG: ", flags),
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.info.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.err.Printf(format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.debug.Printf(format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.err.Printf(format, v...)
	os.Exit(1)
}

// Global logger instance
var GlobalLogger = New()

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Info(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}
