// Package bugsnag reports unexpected errors and panics of the crewupload CLI.
// Reporting is opt-out (config key telemetry, env CREWUPLOAD_TELEMETRY_DISABLED)
// and disabled entirely when no API key was compiled in.
package bugsnag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/bugsnag/bugsnag-go/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/turbo360/crewupload/internal/version"
	"github.com/turbo360/crewupload/pkg/config"
)

// Build-time variables that can be set via ldflags
// Example: go build -ldflags "-X github.com/turbo360/crewupload/pkg/bugsnag.BugsnagAPIKey=your-key"
var (
	// BugsnagAPIKey is the API key for error reporting, injected at compile time.
	BugsnagAPIKey = ""

	// DefaultReleaseStage defines the default environment for error reporting.
	DefaultReleaseStage = "prod"
)

var (
	initOnce sync.Once
	enabled  bool
)

// Initialize configures the Bugsnag client once per process.
func Initialize() error {
	initOnce.Do(func() {
		cfg, _ := config.Load() // Proceed with defaults if config is unavailable
		if cfg != nil && !cfg.IsTelemetryEnabled() {
			return
		}
		if BugsnagAPIKey == "" && os.Getenv("BUGSNAG_API_KEY") == "" {
			return
		}

		apiKey := BugsnagAPIKey
		if envKey := os.Getenv("BUGSNAG_API_KEY"); envKey != "" {
			apiKey = envKey
		}

		releaseStage := os.Getenv("CREWUPLOAD_ENV")
		if releaseStage == "" {
			releaseStage = DefaultReleaseStage
		}

		bugsnag.Configure(bugsnag.Configuration{
			APIKey:              apiKey,
			ReleaseStage:        releaseStage,
			AppVersion:          version.Version,
			AppType:             "cli",
			ProjectPackages:     []string{"main", "github.com/turbo360/crewupload*"},
			NotifyReleaseStages: []string{"prod", "dev", "local"},
			PanicHandler:        func() {}, // Panics are reported by NotifyOnPanic
			Synchronous:         false,
			AutoCaptureSessions: true,
		})

		addSystemMetadata()
		if cfg != nil {
			setUserContext(cfg)
		}
		enabled = true
	})
	return nil
}

// IsEnabled returns whether Bugsnag error reporting is active.
func IsEnabled() bool {
	return enabled
}

func addSystemMetadata() {
	bugsnag.OnBeforeNotify(func(event *bugsnag.Event, _ *bugsnag.Configuration) error {
		event.MetaData.Add("system", "os_type", runtime.GOOS)
		event.MetaData.Add("system", "os_arch", runtime.GOARCH)
		event.MetaData.Add("system", "go_version", runtime.Version())
		event.MetaData.Add("system", "num_cpu", runtime.NumCPU())
		event.MetaData.Add("system", "num_goroutine", runtime.NumGoroutine())
		return nil
	})
}

// setUserContext attaches the token subject and the crew session to every report
func setUserContext(cfg *config.Config) {
	bugsnag.OnBeforeNotify(func(event *bugsnag.Event, _ *bugsnag.Configuration) error {
		if userID := getUserIDFromJWT(cfg.Token); userID != "" {
			event.User = &bugsnag.User{Id: userID}
		}
		if cfg.Session != nil {
			event.MetaData.Add("session", "id", cfg.Session.ID)
			event.MetaData.Add("session", "project", cfg.Session.ProjectName)
			event.MetaData.Add("session", "crew", cfg.Session.CrewName)
		}
		return nil
	})
}

// getUserIDFromJWT extracts the user identifier from a JWT without verifying it.
// Opaque tokens yield an empty string.
func getUserIDFromJWT(tokenString string) string {
	if tokenString == "" {
		return ""
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if username, ok := claims["username"].(string); ok && username != "" {
		return username
	}
	return ""
}

// NotifyError reports failures that indicate a bug or a broken environment.
func NotifyError(ctx context.Context, err error) {
	Notify(ctx, err, bugsnag.SeverityError)
}

// NotifyWarning reports recoverable problems, such as a file that failed to upload.
func NotifyWarning(ctx context.Context, err error) {
	Notify(ctx, err, bugsnag.SeverityWarning)
}

// Notify reports an error with the given severity.
func Notify(ctx context.Context, err error, severity any) {
	NotifyWithMetadata(ctx, err, severity, nil)
}

// NotifyWithMetadata reports an error with extra tabs of metadata.
// User cancellations are never reported.
func NotifyWithMetadata(ctx context.Context, err error, severity any, metadata bugsnag.MetaData) {
	_ = Initialize()

	if !enabled || err == nil || IsUserCancellation(err) {
		return
	}

	rawData := []any{ctx, severity}
	if metadata != nil {
		rawData = append(rawData, metadata)
	}
	_ = bugsnag.Notify(err, rawData...)
}

// NotifyOnPanic captures and reports a panic before re-raising it.
// Use with defer at the start of main.
func NotifyOnPanic(ctx context.Context) {
	if r := recover(); r != nil {
		var err error
		switch x := r.(type) {
		case string:
			err = fmt.Errorf("panic: %s", x)
		case error:
			err = fmt.Errorf("panic: %w", x)
		default:
			err = fmt.Errorf("panic: %v", r)
		}

		NotifyError(ctx, err)
		panic(r)
	}
}

// SetCommandContext records which CLI command triggered an error.
func SetCommandContext(command string, args []string) {
	_ = Initialize()
	if !enabled {
		return
	}

	bugsnag.OnBeforeNotify(func(event *bugsnag.Event, _ *bugsnag.Configuration) error {
		event.MetaData.Add("command", "name", command)
		if len(args) > 0 {
			event.MetaData.Add("command", "args", strings.Join(args, " "))
		}
		return nil
	})
}

// IsUserCancellation identifies errors from user-initiated cancellations.
func IsUserCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") ||
		strings.Contains(errStr, "operation cancelled") ||
		strings.Contains(errStr, "cancelled by user")
}
