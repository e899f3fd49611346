package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment represents the upload service environment
type Environment string

const (
	EnvProd  Environment = "prod"
	EnvDev   Environment = "dev"
	EnvLocal Environment = "local"
)

// EnvConfig holds environment-specific URLs
type EnvConfig struct {
	APIUrl    string
	UploadUrl string
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already set in the process environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

// GetEnvironment returns the current environment from CREWUPLOAD_ENV
func GetEnvironment() Environment {
	env := os.Getenv("CREWUPLOAD_ENV")
	if env == "" {
		return EnvProd
	}

	switch Environment(env) {
	case EnvProd, EnvDev, EnvLocal:
		return Environment(env)
	default:
		return EnvProd
	}
}

// GetEnvConfig returns the configuration for the specified environment
func GetEnvConfig(env Environment) (*EnvConfig, error) {
	var apiURL string
	switch env {
	case EnvProd:
		apiURL = getEnvOrDefault("UPLOAD_API_URL", "https://upload.turbo.net.au")
	case EnvDev:
		apiURL = getEnvOrDefault("UPLOAD_API_URL", "https://dev-upload.turbo.net.au")
	case EnvLocal:
		apiURL = getEnvOrDefault("UPLOAD_API_URL", "http://localhost:3000")
	default:
		return nil, fmt.Errorf("invalid environment: %s", env)
	}

	apiURL = strings.TrimRight(apiURL, "/")
	return &EnvConfig{
		APIUrl:    apiURL,
		UploadUrl: getEnvOrDefault("UPLOAD_TUS_URL", apiURL+"/files"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
