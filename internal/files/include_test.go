package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_matchesGlob(t *testing.T) {
	tcs := []struct {
		name     string
		path     string
		pattern  string
		expected bool
	}{
		{
			name:     "simple wildcard match",
			path:     "notes.tmp",
			pattern:  "*.tmp",
			expected: true,
		},
		{
			name:     "simple wildcard no match",
			path:     "A001.mov",
			pattern:  "*.tmp",
			expected: false,
		},
		{
			name:     "doublestar any subdirectory",
			path:     "DCIM/100/clip.xml",
			pattern:  "**/*.xml",
			expected: true,
		},
		{
			name:     "doublestar in middle",
			path:     "CARD1/CLIPS/proxy/A001.mov",
			pattern:  "CARD1/**/proxy/*.mov",
			expected: true,
		},
		{
			name:     "doublestar in middle no match",
			path:     "CARD2/CLIPS/proxy/A001.mov",
			pattern:  "CARD1/**/proxy/*.mov",
			expected: false,
		},
		{
			name:     "directory prefix",
			path:     "proxies/A001.mov",
			pattern:  "proxies/**",
			expected: true,
		},
		{
			name:     "brace expansion",
			path:     "A001.THM",
			pattern:  "*.{THM,LRV}",
			expected: true,
		},
		{
			name:     "character class",
			path:     "A001_C002.mov",
			pattern:  "A00[0-9]_*.mov",
			expected: true,
		},
		{
			name:     "invalid pattern never matches",
			path:     "A001.mov",
			pattern:  "[",
			expected: false,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			result := matchesGlob(tc.path, tc.pattern)
			assert.Equal(t, tc.expected, result,
				"matchesGlob(%q, %q) = %v, want %v", tc.path, tc.pattern, result, tc.expected)
		})
	}
}

func Test_normalizePatterns(t *testing.T) {
	tcs := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "directory with trailing slash becomes recursive",
			input:    []string{"proxies/"},
			expected: []string{"proxies/**"},
		},
		{
			name:     "removes leading ./",
			input:    []string{"./proxies/", "./notes.txt"},
			expected: []string{"proxies/**", "notes.txt"},
		},
		{
			name:     "glob patterns unchanged",
			input:    []string{"**/*.xml", "*.tmp"},
			expected: []string{"**/*.xml", "*.tmp"},
		},
		{
			name:     "empty patterns filtered",
			input:    []string{"proxies/", "", "  ", "*.tmp"},
			expected: []string{"proxies/**", "*.tmp"},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, normalizePatterns(tc.input))
		})
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relativePaths(entries []Entry) []string {
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.RelativePath)
	}
	return paths
}

func TestEnumerate(t *testing.T) {
	t.Run("walks folders and skips hidden entries", func(t *testing.T) {
		card := filepath.Join(t.TempDir(), "CARD1")
		writeTree(t, card, map[string]string{
			"A001.mov":            "clip-one",
			"sub/A002.mov":        "clip-two",
			"sub/deep/sound.wav":  "wav",
			".DS_Store":           "x",
			"._A001.mov":          "fork",
			".Trashes/stale.mov":  "stale",
			"sub/.hidden/old.mov": "old",
		})

		entries, err := Enumerate([]string{card}, nil)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A001.mov", "sub/A002.mov", "sub/deep/sound.wav"}, relativePaths(entries))
		for _, e := range entries {
			assert.True(t, filepath.IsAbs(e.Path))
		}
		assert.Equal(t, int64(len("clip-one")+len("clip-two")+len("wav")), TotalSize(entries))
	})

	t.Run("applies exclude patterns", func(t *testing.T) {
		card := filepath.Join(t.TempDir(), "CARD1")
		writeTree(t, card, map[string]string{
			"A001.mov":           "clip",
			"A001.THM":           "thumb",
			"proxies/A001.mov":   "proxy",
			"sub/notes.tmp":      "tmp",
			"sub/keep/sound.wav": "wav",
		})

		entries, err := Enumerate([]string{card}, []string{"*.THM", "proxies/", "**/*.tmp"})

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A001.mov", "sub/keep/sound.wav"}, relativePaths(entries))
	})

	t.Run("files given directly keep their base name", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"edit/cut.xml": "<xml/>"})

		entries, err := Enumerate([]string{filepath.Join(dir, "edit", "cut.xml")}, nil)

		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "cut.xml", entries[0].RelativePath)
		assert.Equal(t, "application/xml", entries[0].ContentType)
	})

	t.Run("overlapping roots are deduplicated", func(t *testing.T) {
		card := filepath.Join(t.TempDir(), "CARD1")
		writeTree(t, card, map[string]string{"A001.mov": "clip"})

		entries, err := Enumerate([]string{card, filepath.Join(card, "A001.mov")}, nil)

		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := Enumerate([]string{filepath.Join(t.TempDir(), "nope")}, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "path not found")
	})
}

func TestContentTypes(t *testing.T) {
	t.Run("extension table", func(t *testing.T) {
		tcs := []struct {
			path     string
			expected string
		}{
			{path: "A001.MOV", expected: "video/quicktime"},
			{path: "clip.braw", expected: "video/x-braw"},
			{path: "clip.r3d", expected: "video/x-r3d"},
			{path: "still.JPG", expected: "image/jpeg"},
			{path: "unknown.bin", expected: "application/octet-stream"},
			{path: "noext", expected: "application/octet-stream"},
		}

		for _, tc := range tcs {
			t.Run(tc.path, func(t *testing.T) {
				assert.Equal(t, tc.expected, ContentTypeFromExtension(tc.path))
			})
		}
	})

	t.Run("sniffs untyped files", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"readme":   "plain words for the editor",
			"A001.mov": "not really a movie",
		})

		entries, err := Enumerate([]string{dir}, nil)
		require.NoError(t, err)

		require.NoError(t, DetectContentTypes(context.Background(), entries, 2))

		types := make(map[string]string)
		for _, e := range entries {
			types[e.RelativePath] = e.ContentType
		}
		assert.Equal(t, "text/plain", types["readme"])
		assert.Equal(t, "video/quicktime", types["A001.mov"], "extension match is not overridden")
	})

	t.Run("unreadable file stays octet-stream", func(t *testing.T) {
		entries := []Entry{{Path: filepath.Join(t.TempDir(), "gone"), ContentType: octetStream}}

		require.NoError(t, DetectContentTypes(context.Background(), entries, 0))
		assert.Equal(t, octetStream, entries[0].ContentType)
	})
}
