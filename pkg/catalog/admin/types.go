package admin

import (
	"time"

	"github.com/tendant/content-catalog/pkg/catalog"
)

// unattributed is the by-creator key for content without a creator.
const unattributed = "(none)"

// ContentStatistics provides aggregated statistics about content
type ContentStatistics struct {
	TotalCount   int64            `json:"total_count"`
	ActiveCount  int64            `json:"active_count"`
	RetiredCount int64            `json:"retired_count"`
	ByStatus     map[string]int64 `json:"by_status,omitempty"`
	ByCreator    map[string]int64 `json:"by_creator,omitempty"`
	OldestOn     *catalog.Date    `json:"oldest_created_on,omitempty"`
	NewestOn     *catalog.Date    `json:"newest_created_on,omitempty"`
}

// StatisticsOptions defines what statistics to compute
type StatisticsOptions struct {
	IncludeStatusBreakdown  bool `json:"include_status_breakdown"`
	IncludeCreatorBreakdown bool `json:"include_creator_breakdown"`
	IncludeDateRange        bool `json:"include_date_range"`
}

// DefaultStatisticsOptions returns statistics options with all breakdowns enabled
func DefaultStatisticsOptions() StatisticsOptions {
	return StatisticsOptions{
		IncludeStatusBreakdown:  true,
		IncludeCreatorBreakdown: true,
		IncludeDateRange:        true,
	}
}

// ListContentsRequest contains parameters for admin content listing
type ListContentsRequest struct {
	Filters catalog.ContentFilters `json:"filters"`
}

// ListContentsResponse contains the paginated list of contents
type ListContentsResponse struct {
	Contents   []*catalog.Content `json:"contents"`
	TotalCount int64              `json:"total_count"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	HasMore    bool               `json:"has_more"`
}

// StatisticsRequest contains parameters for retrieving content statistics
type StatisticsRequest struct {
	Filters catalog.ContentFilters `json:"filters"`
	Options StatisticsOptions      `json:"options"`
}

// StatisticsResponse contains the statistics result
type StatisticsResponse struct {
	Statistics ContentStatistics `json:"statistics"`
	ComputedAt time.Time         `json:"computed_at"`
}
