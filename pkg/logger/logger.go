package logger

import (
	"log"
	"os"
)

// Logger writes leveled log lines. Info and Debug go to stdout, Error to
// stderr, so supervisors can split the streams.
type Logger struct {
	info    *log.Logger
	err     *log.Logger
	debug   *log.Logger
	verbose bool
}

func New(verbose bool) *Logger {
	return &Logger{
		info:    log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime),
		err:     log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
		debug:   log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile),
		verbose: verbose,
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.info.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.err.Printf(format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.verbose {
		l.debug.Printf(format, v...)
	}
}

// Default is the process-wide logger used by packages that are not handed
// one explicitly.
var Default = New(os.Getenv("LIVECLASS_DEBUG") != "")

func Info(format string, v ...interface{})  { Default.Info(format, v...) }
func Error(format string, v ...interface{}) { Default.Error(format, v...) }
func Debug(format string, v ...interface{}) { Default.Debug(format, v...) }
