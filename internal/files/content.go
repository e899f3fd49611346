package files

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

const (
	octetStream = "application/octet-stream"
	sniffBytes  = 3072
)

// Camera and editorial formats the sniffing library has no signature for.
var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".mxf":  "application/mxf",
	".r3d":  "video/x-r3d",
	".braw": "video/x-braw",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".wav":  "audio/wav",
	".xml":  "application/xml",
	".srt":  "application/x-subrip",
}

// ContentTypeFromExtension maps well-known media extensions, falling back to octet-stream
func ContentTypeFromExtension(path string) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return octetStream
}

// DetectContentTypes sniffs the content of entries the extension table could not type.
// Files are read concurrently, at most workers at a time. Unreadable files keep octet-stream;
// the upload itself reports them.
func DetectContentTypes(ctx context.Context, entries []Entry, workers int) error {
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range entries {
		if entries[i].ContentType != "" && entries[i].ContentType != octetStream {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries[i].ContentType = sniff(entries[i].Path)
			return nil
		})
	}

	return g.Wait()
}

func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		slog.Debug("Skipping content sniffing", "path", path, "error", err)
		return octetStream
	}
	defer f.Close() //nolint:errcheck // Read-only file

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if n == 0 && err != nil {
		return octetStream
	}

	mt := mimetype.Detect(buf[:n])
	if mt == nil {
		return octetStream
	}
	// Drop parameters such as "; charset=utf-8"
	mediaType, _, _ := strings.Cut(mt.String(), ";")
	return mediaType
}
