package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterwarburton/pantry/internal/core"
)

func TestExtract_Text(t *testing.T) {
	text, err := Extract("text/plain; charset=utf-8", []byte("hello\nworld"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)

	text, err = Extract("text/csv", []byte("a,b\n1,2"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2", text)
}

func TestExtract_DropsInvalidUTF8(t *testing.T) {
	text, err := Extract("text/plain", []byte{'o', 'k', 0xff})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract("image/png", []byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestExtract_BrokenPDF(t *testing.T) {
	_, err := Extract(MimePDF, []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, core.ErrDownloadFailed)
}
