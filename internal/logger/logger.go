package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	// Debug flag to control debug logging
	debugEnabled = false
	// The logger instances
	debugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	infoLogger  = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	warnLogger  = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime)
	errorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
)

// Init initializes the logger
func Init(debug bool) {
	debugEnabled = debug

	debugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	infoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	warnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime)
	errorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	if debugEnabled {
		Debug("Debug logging enabled")
	}
}

// SetOutput redirects every level to w. Used by tests that inspect log lines.
func SetOutput(w io.Writer) {
	debugLogger.SetOutput(w)
	infoLogger.SetOutput(w)
	warnLogger.SetOutput(w)
	errorLogger.SetOutput(w)
}

// Debug logs a debug message if debug mode is enabled
func Debug(format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	infoLogger.Output(2, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	warnLogger.Output(2, fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	errorLogger.Output(2, fmt.Sprintf(format, v...))
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// Sink is the logging surface handed to components at construction time.
type Sink interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// Component is a Sink that prefixes every line with a component name,
// e.g. "[pipeline] Embedded 10/42 chunks".
type Component struct {
	prefix string
}

// New returns a Sink for the named component.
func New(component string) *Component {
	return &Component{prefix: "[" + component + "] "}
}

// Debugf logs at debug level.
func (c *Component) Debugf(format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(2, c.prefix+fmt.Sprintf(format, v...))
	}
}

// Infof logs at info level.
func (c *Component) Infof(format string, v ...interface{}) {
	infoLogger.Output(2, c.prefix+fmt.Sprintf(format, v...))
}

// Warnf logs at warn level.
func (c *Component) Warnf(format string, v ...interface{}) {
	warnLogger.Output(2, c.prefix+fmt.Sprintf(format, v...))
}

// Errorf logs at error level.
func (c *Component) Errorf(format string, v ...interface{}) {
	errorLogger.Output(2, c.prefix+fmt.Sprintf(format, v...))
}

type nop struct{}

func (nop) Debugf(string, ...interface{}) {}
func (nop) Infof(string, ...interface{})  {}
func (nop) Warnf(string, ...interface{})  {}
func (nop) Errorf(string, ...interface{}) {}

// Nop returns a Sink that discards everything.
func Nop() Sink { return nop{} }
