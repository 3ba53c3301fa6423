package monitoring

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Logger provides structured logging with domain helpers
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	out   io.Writer
}

// NewLogger creates a JSON logger writing to w. A nil writer means stderr so
// stdout stays free for results.
func NewLogger(level slog.Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	lv := new(slog.LevelVar)
	lv.Set(level)

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lv,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Add timestamp in RFC3339 format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
		level:  lv,
		out:    w,
	}
}

// ParseLevel maps debug, info, warn and error to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// LoadLogger logs an evidence load
func (l *Logger) LoadLogger(source string, records int, duration time.Duration) {
	l.Info("Evidence Loaded",
		"source", source,
		"records", records,
		"duration_ms", duration.Milliseconds(),
	)
}

// SnapshotLogger logs the outcome of aggregation
func (l *Logger) SnapshotLogger(developers, vocabulary, skipped, withoutLanguage, duplicates int, duration time.Duration) {
	l.Info("Snapshot Built",
		"developers", developers,
		"vocabulary", vocabulary,
		"skipped_records", skipped,
		"without_language", withoutLanguage,
		"duplicates", duplicates,
		"duration_ms", duration.Milliseconds(),
	)
}

// SkippedRecordLogger logs an evidence record the aggregator ignored
func (l *Logger) SkippedRecordLogger(index int, developerID, repositoryID, reason string) {
	l.Warn("Skipped Record",
		"index", index,
		"developer_id", developerID,
		"repository_id", repositoryID,
		"reason", reason,
	)
}

// SearchLogger logs a completed similarity search
func (l *Logger) SearchLogger(developerID string, limit, results int, duration time.Duration, cacheHit bool) {
	l.Info("Search Completed",
		"developer_id", developerID,
		"limit", limit,
		"results", results,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(requestID, method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	// Get caller information for better debugging
	_, file, line, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"caller", caller,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
