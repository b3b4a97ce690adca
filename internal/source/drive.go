package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

const googleAppsPrefix = "application/vnd.google-apps."

// exportFormats maps Google Workspace types to the text format they are
// exported as.
var exportFormats = map[string]string{
	googleAppsPrefix + "document":     MimePlain,
	googleAppsPrefix + "presentation": MimePlain,
	googleAppsPrefix + "spreadsheet":  MimeCSV,
}

// maxDownloadBytes caps a single document download.
const maxDownloadBytes = 50 << 20

// DriveSource fetches documents from Google Drive.
type DriveSource struct {
	svc      *drive.Service
	maxBytes int64
	log      logger.Sink
}

// NewDriveSource authenticates with a service-account credentials file and
// requests read-only access.
func NewDriveSource(ctx context.Context, credentialsFile string, log logger.Sink) (*DriveSource, error) {
	return NewDriveSourceWithOptions(ctx, log,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
}

// NewDriveSourceWithOptions builds the Drive client from raw client options.
func NewDriveSourceWithOptions(ctx context.Context, log logger.Sink, opts ...option.ClientOption) (*DriveSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveSource{svc: svc, maxBytes: maxDownloadBytes, log: log}, nil
}

// Fetch implements core.DocumentSource.
func (s *DriveSource) Fetch(ctx context.Context, documentID string) (string, error) {
	f, err := s.svc.Files.Get(documentID).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: looking up %s: %v", core.ErrDownloadFailed, documentID, err)
	}
	s.log.Debugf("Fetching %q (%s)", f.Name, f.MimeType)

	if export, ok := exportFormats[f.MimeType]; ok {
		resp, err := s.svc.Files.Export(documentID, export).Context(ctx).Download()
		if err != nil {
			return "", fmt.Errorf("%w: exporting %s as %s: %v", core.ErrDownloadFailed, documentID, export, err)
		}
		data, err := s.readBody(resp)
		if err != nil {
			return "", err
		}
		return Extract(export, data)
	}

	if strings.HasPrefix(f.MimeType, googleAppsPrefix) {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, f.MimeType)
	}
	if f.MimeType != MimePDF && !strings.HasPrefix(f.MimeType, "text/") {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, f.MimeType)
	}

	resp, err := s.svc.Files.Get(documentID).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("%w: downloading %s: %v", core.ErrDownloadFailed, documentID, err)
	}
	data, err := s.readBody(resp)
	if err != nil {
		return "", err
	}
	return Extract(f.MimeType, data)
}

// readBody reads the whole response, failing rather than truncating when it
// is larger than maxBytes.
func (s *DriveSource) readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", core.ErrDownloadFailed, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", core.ErrDownloadFailed, s.maxBytes)
	}
	return data, nil
}
