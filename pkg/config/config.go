package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".crewupload"
	DefaultConfigFile = "config.yaml"

	DefaultMaxConcurrent  = 8
	DefaultChunkSizeMB    = 50
	DefaultRequestTimeout = 10 * time.Minute
	DefaultReportInterval = 2 * time.Second
)

// Config holds the CLI configuration
type Config struct {
	environment Environment
	envConfig   *EnvConfig

	Token   string
	Session *Session

	SkipVersionCheck bool
	LogLevel         string
	TelemetryEnabled *bool // Pointer to distinguish between unset (nil) and explicitly set (true/false)

	Upload UploadSettings
}

// Session is the crew upload session the next uploads are attached to
type Session struct {
	ID          string `validate:"required"`
	ProjectName string `validate:"required"`
	CrewName    string `validate:"required"`
	Notes       string
}

// UploadSettings are the engine tunables exposed through the config file
type UploadSettings struct {
	MaxConcurrent  int           `validate:"min=1,max=32"`
	ChunkSizeMB    int           `validate:"min=1,max=1024"`
	RequestTimeout time.Duration `validate:"min=1s"`
	ReportInterval time.Duration `validate:"min=100ms"`
}

// ValidUserFacingConfigKeys lists config keys that users should interact with
// (excludes the token and session which are managed by login and session commands)
var ValidUserFacingConfigKeys = map[string]bool{
	"skipversioncheck": true,
	"loglevel":         true,
	"telemetry":        true,
	"maxconcurrent":    true,
	"chunksizemb":      true,
	"requesttimeout":   true,
	"reportinterval":   true,
}

// IsValidUserFacingKey checks if a config key is a recognized user-facing key
func IsValidUserFacingKey(key string) bool {
	return ValidUserFacingConfigKeys[key]
}

// GetUserFacingKeys returns the user-facing keys in kebab-case, sorted
func GetUserFacingKeys() []string {
	return []string{
		"chunk-size-mb",
		"log-level",
		"max-concurrent",
		"report-interval",
		"request-timeout",
		"skip-version-check",
		"telemetry",
	}
}

// GetConfigKeyDescription returns a description for a config key
func GetConfigKeyDescription(key string) string {
	descriptions := map[string]string{
		"skipversioncheck": "Disable automatic version update checks (true/false)",
		"loglevel":         "Logging level (debug/info/warn/error, default: info)",
		"telemetry":        "Enable error telemetry and crash reporting (true/false, default: true)",
		"maxconcurrent":    "Files uploaded at the same time (1-32, default: 8)",
		"chunksizemb":      "Size of each upload request in MB (default: 50)",
		"requesttimeout":   "Timeout of a single upload request (e.g. 10m)",
		"reportinterval":   "How often progress is printed (e.g. 2s)",
		"token":            "Login token (managed by 'crewupload login')",
	}
	return descriptions[key]
}

// GetEnvironmentPrefixedKey returns the key with environment prefix.
// Credentials and the session are per environment; everything else is global.
func GetEnvironmentPrefixedKey(key string, env Environment) string {
	envKeys := map[string]bool{
		"token":           true,
		"session.id":      true,
		"session.project": true,
		"session.crew":    true,
		"session.notes":   true,
	}

	if !envKeys[key] {
		return key
	}
	return getKeyPrefix(env) + key
}

// Load reads the configuration from ~/.crewupload/config.yaml
func Load() (*Config, error) {
	env := GetEnvironment()
	envConfig, err := GetEnvConfig(env)
	if err != nil {
		return nil, fmt.Errorf("failed to get environment config: %w", err)
	}

	configPath := getConfigPath()
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("maxconcurrent", DefaultMaxConcurrent)
	viper.SetDefault("chunksizemb", DefaultChunkSizeMB)
	viper.SetDefault("requesttimeout", DefaultRequestTimeout)
	viper.SetDefault("reportinterval", DefaultReportInterval)

	// Create config file if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := ensureConfigDir(); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := viper.WriteConfig(); err != nil {
			return nil, fmt.Errorf("failed to create config file: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	prefix := getKeyPrefix(env)

	config := &Config{
		environment:      env,
		envConfig:        envConfig,
		Token:            viper.GetString(prefix + "token"),
		SkipVersionCheck: viper.GetBool("skipversioncheck"),
		LogLevel:         viper.GetString("loglevel"),
		Upload: UploadSettings{
			MaxConcurrent:  viper.GetInt("maxconcurrent"),
			ChunkSizeMB:    viper.GetInt("chunksizemb"),
			RequestTimeout: viper.GetDuration("requesttimeout"),
			ReportInterval: viper.GetDuration("reportinterval"),
		},
	}

	if id := viper.GetString(prefix + "session.id"); id != "" {
		config.Session = &Session{
			ID:          id,
			ProjectName: viper.GetString(prefix + "session.project"),
			CrewName:    viper.GetString(prefix + "session.crew"),
			Notes:       viper.GetString(prefix + "session.notes"),
		}
	}

	if viper.IsSet("telemetry") {
		telemetryEnabled := viper.GetBool("telemetry")
		config.TelemetryEnabled = &telemetryEnabled
	}

	return config, nil
}

// Validate checks the upload settings and the stored session
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c.Upload); err != nil {
		return fmt.Errorf("invalid upload settings: %w", describeValidation(err))
	}
	if c.Session != nil {
		if err := validate.Struct(c.Session); err != nil {
			return fmt.Errorf("invalid upload session: %w", describeValidation(err))
		}
	}
	return nil
}

// describeValidation turns validator errors into "field must be ..." sentences
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// IsTelemetryEnabled returns whether telemetry is enabled.
// Returns true by default if not explicitly set (opt-out model).
func (c *Config) IsTelemetryEnabled() bool {
	if envVal := os.Getenv("CREWUPLOAD_TELEMETRY_DISABLED"); envVal != "" {
		return envVal != "true" && envVal != "1"
	}

	if c.TelemetryEnabled != nil {
		return *c.TelemetryEnabled
	}

	return true
}

// IsLoggedIn reports whether a token is stored
func (c *Config) IsLoggedIn() bool {
	return c.Token != ""
}

// Save writes the current configuration to disk
func Save(config *Config) error {
	prefix := getKeyPrefix(config.environment)

	viper.Set(prefix+"token", config.Token)
	if config.Session != nil {
		viper.Set(prefix+"session.id", config.Session.ID)
		viper.Set(prefix+"session.project", config.Session.ProjectName)
		viper.Set(prefix+"session.crew", config.Session.CrewName)
		viper.Set(prefix+"session.notes", config.Session.Notes)
	} else {
		viper.Set(prefix+"session.id", "")
		viper.Set(prefix+"session.project", "")
		viper.Set(prefix+"session.crew", "")
		viper.Set(prefix+"session.notes", "")
	}
	viper.Set("skipversioncheck", config.SkipVersionCheck)
	viper.Set("loglevel", config.LogLevel)

	if config.TelemetryEnabled != nil {
		viper.Set("telemetry", *config.TelemetryEnabled)
	}

	if err := viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// getConfigPath returns the full path to the config file
func getConfigPath() string {
	if path := os.Getenv("CREWUPLOAD_CONFIG_PATH"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", DefaultConfigDir, DefaultConfigFile)
	}

	return filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFile)
}

// Context key for storing config
type contextKey string

const configContextKey contextKey = "config"

// GetConfigFromContext retrieves the config from the command context
func GetConfigFromContext(cmd *cobra.Command) (*Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, fmt.Errorf("no context available")
	}

	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("config not found in context")
	}

	return cfg, nil
}

// GetContextKey returns the context key used for storing config
func GetContextKey() any {
	return configContextKey
}

// ensureConfigDir ensures the config directory exists
func ensureConfigDir() error {
	configDir := filepath.Dir(getConfigPath())
	return os.MkdirAll(configDir, 0o700)
}

// getKeyPrefix returns the environment-specific key prefix
func getKeyPrefix(env Environment) string {
	if env == EnvProd {
		return ""
	}
	return string(env) + "-"
}

// Environment returns the environment the config was loaded for
func (c *Config) Environment() Environment {
	return c.environment
}

// GetEnvConfig returns the environment configuration
func (c *Config) GetEnvConfig() *EnvConfig {
	return c.envConfig
}

// GetLogLevel returns the configured log level as slog.Level
// Defaults to Info if not set or invalid
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
