package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

var extMime = map[string]string{
	".txt": MimePlain,
	".md":  MimePlain,
	".csv": MimeCSV,
	".pdf": MimePDF,
}

// FileSource reads documents from a local directory. The document ID is
// the file name.
type FileSource struct {
	dir string
	log logger.Sink
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string, log logger.Sink) *FileSource {
	if log == nil {
		log = logger.Nop()
	}
	return &FileSource{dir: dir, log: log}
}

// Fetch implements core.DocumentSource.
func (s *FileSource) Fetch(ctx context.Context, documentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrDownloadFailed, err)
	}
	if documentID == "" || filepath.Base(documentID) != documentID || documentID == ".." {
		return "", fmt.Errorf("%w: invalid document name %q", core.ErrDownloadFailed, documentID)
	}

	mime, ok := extMime[strings.ToLower(filepath.Ext(documentID))]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, documentID)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, documentID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrDownloadFailed, err)
	}
	s.log.Debugf("Read %d bytes from %s", len(data), documentID)
	return Extract(mime, data)
}
