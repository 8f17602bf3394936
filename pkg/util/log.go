package util

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger builds a logfmt logger writing to stderr, filtered to the given
// level ("debug", "info", "warn", "error").
func NewLogger(logLevel string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

	var opt level.Option
	switch logLevel {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}

	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}
