package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NormalizedUpload is the result of reading an Upload once.
type NormalizedUpload struct {
	Hash     string
	FileSize int64
	FileName string
	MimeType string
	Data     []byte
}

// Reader returns a fresh reader over the buffered payload.
func (n *NormalizedUpload) Reader() io.Reader {
	return bytes.NewReader(n.Data)
}

// Apply writes the derived file fields onto c. Storage fields are set by
// the caller once the payload is stored.
func (n *NormalizedUpload) Apply(c *Content) {
	size := float64(n.FileSize)
	c.Hash = n.Hash
	c.FileSize = &size
	c.FileName = n.FileName
	c.MimeType = n.MimeType
}

// NormalizeUpload reads the whole payload, hashes it with SHA-256 and
// sanitizes its name. A nil upload yields (nil, nil).
func NormalizeUpload(u *Upload, sanitize FileNameSanitizer) (*NormalizedUpload, error) {
	if u == nil || u.Reader == nil {
		return nil, nil
	}
	if sanitize == nil {
		sanitize = SanitizeFileName
	}

	data, err := io.ReadAll(u.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrUploadFailed, err)
	}

	name, err := sanitize(u.FileName)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	mimeType := u.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return &NormalizedUpload{
		Hash:     hex.EncodeToString(sum[:]),
		FileSize: int64(len(data)),
		FileName: name,
		MimeType: mimeType,
		Data:     data,
	}, nil
}

// SanitizeFileName trims whitespace, turns spaces into underscores and keeps
// only letters, digits, '-', '_' and '.'.
func SanitizeFileName(name string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, s)
	if s == "" || s == "." || s == ".." {
		return "", &ValidationError{
			Field:   "file_name",
			Message: fmt.Sprintf("could not derive file name from %q", name),
			Err:     ErrInvalidFileName,
		}
	}
	return s, nil
}

// UniqueFileName rejects a file name already used by other content.
func UniqueFileName(ctx context.Context, repo Repository, fileName string, exclude uuid.UUID) error {
	existing, err := repo.GetContentByFileName(ctx, fileName)
	if errors.Is(err, ErrContentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == exclude {
		return nil
	}
	return DuplicateFileNameError()
}
