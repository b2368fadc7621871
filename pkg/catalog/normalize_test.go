package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestNormalizeUpload(t *testing.T) {
	payload := []byte("the quick brown fox")
	sum := sha256.Sum256(payload)
	want := hex.EncodeToString(sum[:])

	first, err := NormalizeUpload(&Upload{FileName: "fox.txt", Reader: bytes.NewReader(payload)}, nil)
	require.NoError(t, err)
	second, err := NormalizeUpload(&Upload{FileName: "fox.txt", Reader: bytes.NewReader(payload)}, nil)
	require.NoError(t, err)

	assert.Equal(t, want, first.Hash)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, int64(len(payload)), first.FileSize)
	assert.Equal(t, "fox.txt", first.FileName)
	assert.Contains(t, first.MimeType, "text/plain")

	var c Content
	first.Apply(&c)
	require.NotNil(t, c.FileSize)
	assert.Equal(t, float64(len(payload)), *c.FileSize)
	assert.Equal(t, want, c.Hash)
}

func TestNormalizeUpload_EmptyPayload(t *testing.T) {
	n, err := NormalizeUpload(&Upload{FileName: "empty.bin", Reader: bytes.NewReader(nil)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", n.Hash)
	assert.Equal(t, int64(0), n.FileSize)
}

func TestNormalizeUpload_NoPayload(t *testing.T) {
	n, err := NormalizeUpload(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, n)

	n, err = NormalizeUpload(&Upload{FileName: "x.txt"}, nil)
	assert.NoError(t, err)
	assert.Nil(t, n)
}

func TestNormalizeUpload_ReadFailure(t *testing.T) {
	_, err := NormalizeUpload(&Upload{FileName: "x.txt", Reader: failingReader{}}, nil)
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestNormalizeUpload_KeepsReportedMimeType(t *testing.T) {
	n, err := NormalizeUpload(&Upload{FileName: "x.csv", MimeType: "text/csv", Reader: bytes.NewReader([]byte("a,b"))}, nil)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", n.MimeType)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john's portrait in 2004.jpg", "johns_portrait_in_2004.jpg"},
		{"  report final.pdf ", "report_final.pdf"},
		{"../../etc/passwd", "....etcpasswd"},
		{"café-menu_v2.PNG", "café-menu_v2.PNG"},
		{"a<b>c:d.txt", "abcd.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeFileName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "   ", ".", "..", "???", "/"} {
		_, err := SanitizeFileName(bad)
		assert.ErrorIs(t, err, ErrInvalidFileName, bad)
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
	}
}
