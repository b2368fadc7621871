package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
)

// FileOpener opens the stored payload of a content record.
type FileOpener interface {
	OpenContentFile(ctx context.Context, id uuid.UUID) (*catalog.ContentFile, error)
}

// HashVerifier re-hashes stored payloads and compares them with the
// recorded SHA-256. Content without a file is skipped.
type HashVerifier struct {
	Files FileOpener
}

// NewHashVerifier creates a HashVerifier reading through files.
func NewHashVerifier(files FileOpener) *HashVerifier {
	return &HashVerifier{Files: files}
}

func (v *HashVerifier) Process(ctx context.Context, content *catalog.Content) error {
	if !content.HasFile() {
		return ErrSkip
	}

	file, err := v.Files.OpenContentFile(ctx, content.ID)
	if err != nil {
		return err
	}
	defer file.Reader.Close()

	h := sha256.New()
	n, err := io.Copy(h, file.Reader)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if got := hex.EncodeToString(h.Sum(nil)); got != content.Hash {
		return fmt.Errorf("hash mismatch: recorded %s, stored %s", content.Hash, got)
	}
	if content.FileSize != nil && int64(*content.FileSize) != n {
		return fmt.Errorf("size mismatch: recorded %.0f, stored %d", *content.FileSize, n)
	}
	return nil
}
