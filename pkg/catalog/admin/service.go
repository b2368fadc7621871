// Package admin provides read-only operational views over the catalog:
// unrestricted listing and aggregated statistics.
package admin

import (
	"context"

	"github.com/tendant/content-catalog/pkg/catalog"
)

// ContentReader is the part of catalog.Service and catalog.Repository the
// admin service reads from.
type ContentReader interface {
	ListContent(ctx context.Context, filters catalog.ContentFilters) ([]*catalog.Content, error)
	CountContent(ctx context.Context, filters catalog.ContentFilters) (int64, error)
}

// Service defines administrative content operations.
//
// Callers exposing it over a network must put their own authorization in
// front of it.
type Service interface {
	// ListAllContents returns one page of content plus the total matching count.
	ListAllContents(ctx context.Context, req ListContentsRequest) (*ListContentsResponse, error)

	// GetStatistics returns aggregated statistics about content matching the
	// filters. Pagination fields in the filters are ignored.
	GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResponse, error)
}

// New creates a new admin Service that reads through r.
func New(r ContentReader) Service {
	return &adminService{reader: r, pageSize: defaultPageSize}
}
