// Package fs stores catalog payloads as plain files under a base directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/content-catalog/pkg/catalog"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
	sniffLen = 512
)

// Config options for the filesystem backend
type Config struct {
	BaseDir string
}

// Backend keeps each object at BaseDir/<object key>. Writes go through a
// temporary file in the target directory and are renamed into place, so a
// key is either absent or complete.
type Backend struct {
	root string
}

var _ catalog.BlobStore = (*Backend)(nil)

// New creates the base directory if needed.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("fs storage: base directory is required")
	}
	root, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("fs storage: resolve base directory: %w", err)
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("fs storage: create base directory: %w", err)
	}
	return &Backend{root: root}, nil
}

// resolve maps an object key to a path inside root.
func (b *Backend) resolve(objectKey string) (string, error) {
	p := filepath.Join(b.root, filepath.FromSlash(objectKey))
	if !strings.HasPrefix(p, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("fs storage: object key %q escapes base directory", objectKey)
	}
	return p, nil
}

func (b *Backend) Upload(ctx context.Context, reader io.Reader, params catalog.UploadParams) error {
	target, err := b.resolve(params.ObjectKey)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("fs storage: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("fs storage: create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	written, err := io.Copy(tmp, reader)
	if err != nil {
		return fmt.Errorf("fs storage: write %s: %w", params.ObjectKey, err)
	}
	if params.Size > 0 && written != params.Size {
		return fmt.Errorf("fs storage: wrote %d bytes for %s, expected %d", written, params.ObjectKey, params.Size)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fs storage: sync %s: %w", params.ObjectKey, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fs storage: close %s: %w", params.ObjectKey, err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("fs storage: chmod %s: %w", params.ObjectKey, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("fs storage: publish %s: %w", params.ObjectKey, err)
	}
	committed = true
	return nil
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	p, err := b.resolve(objectKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapNotExist(err)
	}
	return f, nil
}

// GetObjectMeta stats the file and sniffs its content type from the first
// bytes.
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*catalog.ObjectMeta, error) {
	p, err := b.resolve(objectKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapNotExist(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("fs storage: stat %s: %w", objectKey, err)
	}
	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(f, head)
	contentType := http.DetectContentType(head[:n])

	return &catalog.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
		Metadata:    map[string]string{"content_type": contentType},
	}, nil
}

// Delete removes the object and prunes directories it leaves empty.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	p, err := b.resolve(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return mapNotExist(err)
	}
	for dir := filepath.Dir(p); dir != b.root; dir = filepath.Dir(dir) {
		// Remove fails on non-empty directories.
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

func mapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return catalog.ErrObjectNotFound
	}
	return fmt.Errorf("fs storage: %w", err)
}
