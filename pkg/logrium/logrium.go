package logrium

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-isatty"
)

// FormatEnv selects the handler: "json" for machine-readable logs, anything else for text
const FormatEnv = "CREWUPLOAD_LOG_FORMAT"

// Setup configures the global slog logger based on display options and log level.
//
// Logging behavior:
//   - isInteractive=true + stderr is terminal: logs to a timestamped file in the temp dir
//     so the upload view is not corrupted
//   - isInteractive=true + stderr redirected: logs to stderr (respects 2>)
//   - isInteractive=false: logs to stderr, interleaved with the plain progress lines
//
// Returns the log file path, or an empty string when logging to stderr.
func Setup(isInteractive bool, level slog.Level) (string, error) {
	var output io.Writer = os.Stderr
	var logFilePath string

	if isInteractive && isatty.IsTerminal(os.Stderr.Fd()) {
		timestamp := time.Now().Format("2006-01-02T15-04-05")
		logFilePath = filepath.Join(os.TempDir(), fmt.Sprintf("crewupload-debug-%s.log", timestamp))

		logFile, err := os.OpenFile(logFilePath, //nolint:gosec // Log file in temp directory
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return "", err
		}
		output = logFile
	}

	slog.SetDefault(slog.New(newHandler(output, level, os.Getenv(FormatEnv))))
	return logFilePath, nil
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Disable configures slog to discard all log output.
// Used when --verbose is not set.
func Disable() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	})))
}

// SetupForTesting configures slog to write to w for the duration of the test.
// The original logger is restored when the test completes.
//
//	var buf bytes.Buffer
//	logrium.SetupForTesting(t, &buf, slog.LevelDebug)
//	scheduler.StartAll()
//	assert.Contains(t, buf.String(), "Retrying upload step")
func SetupForTesting(t *testing.T, w io.Writer, level slog.Level) {
	originalLogger := slog.Default()

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})))

	t.Cleanup(func() {
		slog.SetDefault(originalLogger)
	})
}
