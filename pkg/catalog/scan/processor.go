package scan

import (
	"context"
	"errors"

	"github.com/tendant/content-catalog/pkg/catalog"
)

// ErrSkip tells the scanner a record was deliberately left alone. It is
// counted in ScanResult.TotalSkipped rather than as a failure.
var ErrSkip = errors.New("skip content")

// ContentProcessor processes individual content items.
//
// Return an error to mark the content as failed; the scan continues with the
// next record.
type ContentProcessor interface {
	Process(ctx context.Context, content *catalog.Content) error
}

// ProcessorFunc adapts a function to the ContentProcessor interface.
type ProcessorFunc func(ctx context.Context, content *catalog.Content) error

func (f ProcessorFunc) Process(ctx context.Context, content *catalog.Content) error {
	return f(ctx, content)
}
