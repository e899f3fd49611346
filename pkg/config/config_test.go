package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	t.Setenv("CREWUPLOAD_CONFIG_PATH", path)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return path
}

func TestLoad(t *testing.T) {
	t.Run("creates the file with defaults", func(t *testing.T) {
		t.Setenv("CREWUPLOAD_ENV", "")
		path := setupConfigFile(t, "")

		cfg, err := Load()

		require.NoError(t, err)
		assert.FileExists(t, path)
		assert.Equal(t, EnvProd, cfg.Environment())
		assert.False(t, cfg.IsLoggedIn())
		assert.Nil(t, cfg.Session)
		assert.Equal(t, UploadSettings{
			MaxConcurrent:  DefaultMaxConcurrent,
			ChunkSizeMB:    DefaultChunkSizeMB,
			RequestTimeout: DefaultRequestTimeout,
			ReportInterval: DefaultReportInterval,
		}, cfg.Upload)
	})

	t.Run("environment prefixed credentials", func(t *testing.T) {
		t.Setenv("CREWUPLOAD_ENV", "dev")
		setupConfigFile(t, `token: prod-token
dev-token: dev-token
dev-session:
  id: s-9
  project: Harbour Lights
  crew: Drone
maxconcurrent: 4
requesttimeout: 90s
`)

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "dev-token", cfg.Token)
		require.NotNil(t, cfg.Session)
		assert.Equal(t, "Drone", cfg.Session.CrewName)
		assert.Equal(t, 4, cfg.Upload.MaxConcurrent)
		assert.Equal(t, 90*time.Second, cfg.Upload.RequestTimeout)
	})

	t.Run("save round trip", func(t *testing.T) {
		t.Setenv("CREWUPLOAD_ENV", "")
		setupConfigFile(t, "")

		cfg, err := Load()
		require.NoError(t, err)
		cfg.Token = "tok-1"
		cfg.Session = &Session{ID: "s-1", ProjectName: "Harbour Lights", CrewName: "B-Cam", Notes: "Day 2"}
		require.NoError(t, Save(cfg))

		viper.Reset()
		reloaded, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "tok-1", reloaded.Token)
		assert.Equal(t, cfg.Session, reloaded.Session)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := UploadSettings{MaxConcurrent: 8, ChunkSizeMB: 50, RequestTimeout: time.Minute, ReportInterval: 2 * time.Second}

	tcs := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{name: "valid", cfg: Config{Upload: valid}},
		{
			name:   "too many workers",
			cfg:    Config{Upload: UploadSettings{MaxConcurrent: 64, ChunkSizeMB: 50, RequestTimeout: time.Minute, ReportInterval: time.Second}},
			errMsg: "MaxConcurrent must be at most 32",
		},
		{
			name:   "tiny report interval",
			cfg:    Config{Upload: UploadSettings{MaxConcurrent: 8, ChunkSizeMB: 50, RequestTimeout: time.Minute, ReportInterval: time.Millisecond}},
			errMsg: "ReportInterval must be at least 100ms",
		},
		{
			name:   "session without crew",
			cfg:    Config{Upload: valid, Session: &Session{ID: "s-1", ProjectName: "Harbour Lights"}},
			errMsg: "CrewName is required",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestGetEnvironmentPrefixedKey(t *testing.T) {
	assert.Equal(t, "token", GetEnvironmentPrefixedKey("token", EnvProd))
	assert.Equal(t, "dev-token", GetEnvironmentPrefixedKey("token", EnvDev))
	assert.Equal(t, "local-session.id", GetEnvironmentPrefixedKey("session.id", EnvLocal))
	assert.Equal(t, "maxconcurrent", GetEnvironmentPrefixedKey("maxconcurrent", EnvDev))
}

func TestGetEnvConfig(t *testing.T) {
	t.Run("upload url follows the api url", func(t *testing.T) {
		t.Setenv("UPLOAD_API_URL", "http://localhost:4000/")
		t.Setenv("UPLOAD_TUS_URL", "")

		envCfg, err := GetEnvConfig(EnvLocal)

		require.NoError(t, err)
		assert.Equal(t, "http://localhost:4000", envCfg.APIUrl)
		assert.Equal(t, "http://localhost:4000/files", envCfg.UploadUrl)
	})

	t.Run("upload url override", func(t *testing.T) {
		t.Setenv("UPLOAD_API_URL", "")
		t.Setenv("UPLOAD_TUS_URL", "https://tus.example.com/files")

		envCfg, err := GetEnvConfig(EnvProd)

		require.NoError(t, err)
		assert.Equal(t, "https://upload.turbo.net.au", envCfg.APIUrl)
		assert.Equal(t, "https://tus.example.com/files", envCfg.UploadUrl)
	})

	t.Run("unknown environment", func(t *testing.T) {
		_, err := GetEnvConfig(Environment("staging"))
		assert.Error(t, err)
	})
}

func TestIsTelemetryEnabled(t *testing.T) {
	off := false

	t.Setenv("CREWUPLOAD_TELEMETRY_DISABLED", "")
	assert.True(t, (&Config{}).IsTelemetryEnabled())
	assert.False(t, (&Config{TelemetryEnabled: &off}).IsTelemetryEnabled())

	t.Setenv("CREWUPLOAD_TELEMETRY_DISABLED", "1")
	assert.False(t, (&Config{}).IsTelemetryEnabled())
}
