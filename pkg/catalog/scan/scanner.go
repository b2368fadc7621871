// Package scan walks catalog content in batches and hands each record to a
// processor, for backfills and integrity checks.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/admin"
)

const defaultBatchSize = 100

// Scanner queries contents and processes them with the provided processor.
type Scanner struct {
	adminSvc admin.Service
	logger   *slog.Logger
}

// New creates a new Scanner instance. A nil logger uses slog.Default.
func New(adminSvc admin.Service, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{adminSvc: adminSvc, logger: logger}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// Filters specifies which contents to process. Limit and Offset are
	// managed by the scanner.
	Filters catalog.ContentFilters

	// Processor is required unless DryRun is set.
	Processor ContentProcessor

	// BatchSize controls how many contents to query at once (default: 100)
	BatchSize int

	// DryRun reports what would be processed without calling Processor.
	DryRun bool

	// OnProgress is called after each batch is processed (optional)
	OnProgress func(processed, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	TotalFound     int64
	TotalProcessed int64
	TotalFailed    int64
	TotalSkipped   int64
	FailedIDs      []string
}

// Scan queries contents matching the filters and processes each one.
// Records are snapshotted page by page; a processor that changes which
// records match the filters may cause records to be visited twice or missed.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	filters := opts.Filters
	filters.Limit = opts.BatchSize
	for offset := 0; ; offset += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		filters.Offset = offset

		resp, err := s.adminSvc.ListAllContents(ctx, admin.ListContentsRequest{Filters: filters})
		if err != nil {
			return result, fmt.Errorf("failed to list contents: %w", err)
		}
		if len(resp.Contents) == 0 {
			break
		}
		result.TotalFound += int64(len(resp.Contents))

		for _, content := range resp.Contents {
			if opts.DryRun {
				s.logger.Info("dry run: would process content",
					"content_id", content.ID, "file_name", content.FileName, "status", content.Status)
				result.TotalProcessed++
				continue
			}

			err := opts.Processor.Process(ctx, content)
			switch {
			case err == nil:
				result.TotalProcessed++
			case errors.Is(err, ErrSkip):
				result.TotalSkipped++
			default:
				result.TotalFailed++
				result.FailedIDs = append(result.FailedIDs, content.ID.String())
				s.logger.Warn("failed to process content", "content_id", content.ID, "err", err)
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed+result.TotalSkipped, resp.TotalCount)
		}
		if !resp.HasMore {
			break
		}
	}

	return result, nil
}

// ForEach processes each matching content with fn.
func (s *Scanner) ForEach(ctx context.Context, filters catalog.ContentFilters, fn func(context.Context, *catalog.Content) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{Filters: filters, Processor: ProcessorFunc(fn)})
}
