package peer

import (
	"fmt"
	"log"

	"github.com/pion/logging"
)

// pionLogger routes pion's leveled logging into the standard logger used
// everywhere else in this codebase.
type pionLogger struct {
	scope string
}

func (l pionLogger) print(level, msg string) {
	log.Printf("[pion/%s] %s: %s", l.scope, level, msg)
}

func (l pionLogger) printf(level, format string, args ...interface{}) {
	l.print(level, fmt.Sprintf(format, args...))
}

func (l pionLogger) Trace(msg string)                          {}
func (l pionLogger) Tracef(format string, args ...interface{}) {}
func (l pionLogger) Debug(msg string)                          {}
func (l pionLogger) Debugf(format string, args ...interface{}) {}
func (l pionLogger) Info(msg string)                           { l.print("INFO", msg) }
func (l pionLogger) Infof(format string, args ...interface{})  { l.printf("INFO", format, args...) }
func (l pionLogger) Warn(msg string)                           { l.print("WARN", msg) }
func (l pionLogger) Warnf(format string, args ...interface{})  { l.printf("WARN", format, args...) }
func (l pionLogger) Error(msg string)                          { l.print("ERROR", msg) }
func (l pionLogger) Errorf(format string, args ...interface{}) { l.printf("ERROR", format, args...) }

type pionLoggerFactory struct{}

func (pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{scope: scope}
}
