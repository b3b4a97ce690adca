package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/hunterwarburton/pantry/internal/core"
)

// fakeDrive serves the subset of the Drive v3 API used by DriveSource.
func fakeDrive(t *testing.T, files map[string]string, bodies map[string]string) *DriveSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := strings.CutPrefix(r.URL.Path, "/files/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		id, export := strings.CutSuffix(id, "/export")

		mime, ok := files[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
			return
		}

		switch {
		case export:
			_, _ = w.Write([]byte(bodies[id+"|"+r.URL.Query().Get("mimeType")]))
		case r.URL.Query().Get("alt") == "media":
			_, _ = w.Write([]byte(bodies[id]))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"` + id + `","name":"doc","mimeType":"` + mime + `"}`))
		}
	}))
	t.Cleanup(srv.Close)

	src, err := NewDriveSourceWithOptions(context.Background(), nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return src
}

func TestDriveSource_ExportsGoogleDoc(t *testing.T) {
	src := fakeDrive(t,
		map[string]string{"doc1": "application/vnd.google-apps.document"},
		map[string]string{"doc1|text/plain": "Shelf A holds flour."},
	)

	text, err := src.Fetch(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Shelf A holds flour.", text)
}

func TestDriveSource_ExportsSheetAsCSV(t *testing.T) {
	src := fakeDrive(t,
		map[string]string{"sheet": "application/vnd.google-apps.spreadsheet"},
		map[string]string{"sheet|text/csv": "item,qty\nrice,4"},
	)

	text, err := src.Fetch(context.Background(), "sheet")
	require.NoError(t, err)
	assert.Equal(t, "item,qty\nrice,4", text)
}

func TestDriveSource_DownloadsPlainText(t *testing.T) {
	src := fakeDrive(t,
		map[string]string{"notes": "text/plain"},
		map[string]string{"notes": "raw notes"},
	)

	text, err := src.Fetch(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, "raw notes", text)
}

func TestDriveSource_Failures(t *testing.T) {
	src := fakeDrive(t,
		map[string]string{
			"img":  "image/png",
			"form": "application/vnd.google-apps.form",
		},
		nil,
	)
	ctx := context.Background()

	_, err := src.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrDownloadFailed)

	_, err = src.Fetch(ctx, "img")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	_, err = src.Fetch(ctx, "form")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestDriveSource_RejectsOversizedDocument(t *testing.T) {
	src := fakeDrive(t,
		map[string]string{
			"exact": "text/plain",
			"big":   "text/plain",
			"doc":   "application/vnd.google-apps.document",
		},
		map[string]string{
			"exact":          "0123456789abcdef",
			"big":            "0123456789abcdef TAIL-SENTENCE.",
			"doc|text/plain": "0123456789abcdef!",
		},
	)
	src.maxBytes = 16
	ctx := context.Background()

	text, err := src.Fetch(ctx, "exact")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", text)

	_, err = src.Fetch(ctx, "big")
	assert.ErrorIs(t, err, core.ErrDownloadFailed)
	assert.ErrorContains(t, err, "exceeds 16 bytes")

	_, err = src.Fetch(ctx, "doc")
	assert.ErrorIs(t, err, core.ErrDownloadFailed)
}
