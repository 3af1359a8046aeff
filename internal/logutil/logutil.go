// Package logutil configures the default slog logger from CLI verbosity.
package logutil

import (
	"log/slog"

	"github.com/fpm-dev/fpm/internal/gitgw"
)

// SetVerbosity maps a -v count to a slog level and installs it as the
// default logger level, mirroring git's own -v/-q conventions: 0 is
// errors only, 1 warnings, 2 info, 3+ debug.
func SetVerbosity(count int) {
	var lvl slog.Level
	switch {
	case count <= 0:
		lvl = slog.LevelError
	case count == 1:
		lvl = slog.LevelWarn
	case count == 2:
		lvl = slog.LevelInfo
	default:
		lvl = slog.LevelDebug
	}

	slog.SetLogLoggerLevel(lvl)
}

// GitURL returns a slog.Attr for a git remote URL with any embedded
// credentials and query parameters stripped, so logging a bundle's
// resolved remote never leaks secrets into log output.
func GitURL(key, rawURL string) slog.Attr {
	return slog.String(key, gitgw.RedactURL(rawURL))
}
