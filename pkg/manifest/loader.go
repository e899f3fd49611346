// Package manifest reads batch manifests: TOML files describing a crew session
// and the card folders to upload with it.
//
//	[session]
//	project = "Harbour Ad"
//	crew = "Camera A"
//	notes = "Day 2"
//
//	[upload]
//	sources = ["/Volumes/A001", "sound/"]
//	exclude = ["*.THM", "proxies/"]
//	concurrency = 4
//	chunk_size_mb = 50
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is looked up when --manifest points at a folder
const DefaultFileName = "crewupload.toml"

// Manifest is a parsed batch manifest
type Manifest struct {
	Session Session `toml:"session"`
	Upload  Upload  `toml:"upload"`

	path string
}

// Session labels the crew upload session the batch belongs to
type Session struct {
	Project string `toml:"project" validate:"required_with=Crew,max=200"`
	Crew    string `toml:"crew" validate:"required_with=Project,max=200"`
	Notes   string `toml:"notes" validate:"max=2000"`
}

// Upload lists what to send and how
type Upload struct {
	Sources     []string `toml:"sources" validate:"required,min=1,dive,required"`
	Exclude     []string `toml:"exclude"`
	Concurrency int      `toml:"concurrency" validate:"omitempty,min=1,max=32"`
	ChunkSizeMB int      `toml:"chunk_size_mb" validate:"omitempty,min=1,max=1024"`
}

// Load reads and validates the manifest at path.
// Relative sources are resolved against the manifest's folder.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.path = path
	m.resolveSources(filepath.Dir(path))
	return m, nil
}

// Parse decodes manifest TOML. Unknown keys are rejected so typos do not go unnoticed.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("unknown keys in manifest:\n%s", strictErr.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("invalid manifest at line %d, column %d: %s", row, col, decodeErr.Error())
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Path is the file the manifest was loaded from
func (m *Manifest) Path() string {
	return m.path
}

// HasSession reports whether the manifest names a crew session
func (m *Manifest) HasSession() bool {
	return m.Session.Project != "" && m.Session.Crew != ""
}

func (m *Manifest) resolveSources(dir string) {
	for i, src := range m.Upload.Sources {
		src = expandHome(strings.TrimSpace(src))
		if !filepath.IsAbs(src) {
			src = filepath.Join(dir, src)
		}
		m.Upload.Sources[i] = filepath.Clean(src)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
