package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

const (
	// Cache file for version check, relative to the home directory
	versionCacheFile = ".crewupload/version_cache.json"

	// Only check once per day
	cacheDuration = 24 * time.Hour
)

// releasesAPI is the GitHub endpoint for the latest release
var releasesAPI = "https://api.github.com/repos/turbo360/crewupload/releases/latest"

// VersionCache stores the cached version check result
type VersionCache struct {
	LatestVersion string    `json:"latestVersion"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// GitHubRelease represents a GitHub release response
type GitHubRelease struct {
	TagName string `json:"tag_name"` // e.g., "v1.4.0"
}

// Checker looks up the latest published release
type Checker struct {
	Current   string
	CachePath string // Empty disables caching
	client    *http.Client
	url       string
	now       func() time.Time
}

// NewChecker creates a checker for the running build
func NewChecker() *Checker {
	c := &Checker{
		Current: Version,
		client:  &http.Client{Timeout: 3 * time.Second},
		url:     releasesAPI,
		now:     time.Now,
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		c.CachePath = filepath.Join(homeDir, versionCacheFile)
	}
	return c
}

// CheckForUpdate checks if a newer version is available
// Returns (latestVersion, updateAvailable, error)
func (c *Checker) CheckForUpdate(ctx context.Context) (latestVersion string, updateAvailable bool, err error) {
	if c.Current == "dev" {
		return "", false, nil
	}

	if cached, ok := c.cachedVersion(); ok {
		return compareVersions(c.Current, cached)
	}

	latest, err := c.fetchLatestVersion(ctx)
	if err != nil {
		// A failed check never blocks the command
		//nolint:nilerr
		return "", false, nil
	}

	c.cacheVersion(latest)

	return compareVersions(c.Current, latest)
}

// compareVersions compares current version with latest
func compareVersions(currentVersion, latestVersion string) (string, bool, error) {
	current, err := version.NewVersion(strings.TrimPrefix(currentVersion, "v"))
	if err != nil {
		return latestVersion, false, fmt.Errorf("invalid current version: %w", err)
	}

	latest, err := version.NewVersion(strings.TrimPrefix(latestVersion, "v"))
	if err != nil {
		return latestVersion, false, fmt.Errorf("invalid latest version: %w", err)
	}

	// Pre-releases are only offered to people already running one
	if latest.Prerelease() != "" && current.Prerelease() == "" {
		return latestVersion, false, nil
	}

	return latestVersion, latest.GreaterThan(current), nil
}

// fetchLatestVersion fetches the latest version from the releases API
func (c *Checker) fetchLatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Deferred close, error not actionable
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("releases API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", err
	}
	if release.TagName == "" {
		return "", fmt.Errorf("release has no tag")
	}

	return release.TagName, nil
}

func (c *Checker) cachedVersion() (string, bool) {
	if c.CachePath == "" {
		return "", false
	}

	data, err := os.ReadFile(c.CachePath) //nolint:gosec // Cache file in user's home directory
	if err != nil {
		return "", false
	}

	var cache VersionCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return "", false
	}

	if c.now().Sub(cache.CheckedAt) > cacheDuration {
		return "", false
	}

	return cache.LatestVersion, true
}

func (c *Checker) cacheVersion(latestVersion string) {
	if c.CachePath == "" {
		return
	}

	//nolint:errcheck,gosec // Best effort directory creation, error not actionable
	os.MkdirAll(filepath.Dir(c.CachePath), 0o755)

	data, err := json.Marshal(VersionCache{
		LatestVersion: latestVersion,
		CheckedAt:     c.now(),
	})
	if err != nil {
		return
	}

	//nolint:errcheck,gosec // Best effort cache write, error not actionable
	os.WriteFile(c.CachePath, data, 0o644)
}

// PrintUpdateNotification prints an update notification if available
// Respects user's config preference for skipping version checks
func PrintUpdateNotification(ctx context.Context, skipVersionCheck bool) {
	if skipVersionCheck {
		return
	}
	NewChecker().printNotification(ctx, os.Stderr)
}

func (c *Checker) printNotification(ctx context.Context, w io.Writer) {
	latestVersion, updateAvailable, err := c.CheckForUpdate(ctx)
	if err != nil || !updateAvailable {
		return
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "A new version of crewupload is available: %s (you have %s)\n", latestVersion, c.Current)
	fmt.Fprintf(w, "Download: https://github.com/turbo360/crewupload/releases/latest\n")
	fmt.Fprintf(w, "To disable these notifications: crewupload config set skipversioncheck true\n")
	fmt.Fprintf(w, "\n")
}
