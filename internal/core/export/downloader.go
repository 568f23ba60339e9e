package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Downloader hands a rendered document to the host environment. The core
// produces content and a suggested filename; the collaborator owns the
// actual save mechanism.
type Downloader interface {
	Download(content string, filename string, mimeType string) error
}

// FileDownloader saves reports into a local output directory.
type FileDownloader struct {
	Dir string
}

// NewFileDownloader creates a downloader rooted at dir.
func NewFileDownloader(dir string) *FileDownloader {
	return &FileDownloader{Dir: dir}
}

// Download writes content to Dir/filename, creating the directory if
// needed.
func (d *FileDownloader) Download(content, filename, mimeType string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %q: %w", d.Dir, err)
	}

	path := filepath.Join(d.Dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing report %q: %w", path, err)
	}

	slog.Info("Report saved", "path", path, "mime_type", mimeType, "bytes", len(content))
	return nil
}
