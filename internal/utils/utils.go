package utils

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// trace is not used
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	case "panic":
		Log.SetLevel(log.PanicLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// NopLogger returns a logger that drops everything. Library packages fall
// back to it when the caller passes no logger.
func NopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// LoggerOrNop returns l, or a NopLogger when l is nil.
func LoggerOrNop(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// SplitList splits comma separated flag values, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
