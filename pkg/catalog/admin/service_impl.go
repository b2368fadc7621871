package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/content-catalog/pkg/catalog"
)

const (
	defaultListLimit = 100
	defaultPageSize  = 500
)

type adminService struct {
	reader   ContentReader
	pageSize int
}

var _ Service = (*adminService)(nil)

func (s *adminService) ListAllContents(ctx context.Context, req ListContentsRequest) (*ListContentsResponse, error) {
	filters := req.Filters
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	contents, err := s.reader.ListContent(ctx, filters)
	if err != nil {
		return nil, err
	}
	total, err := s.reader.CountContent(ctx, withoutPaging(filters))
	if err != nil {
		return nil, err
	}

	return &ListContentsResponse{
		Contents:   contents,
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
		HasMore:    int64(filters.Offset+len(contents)) < total,
	}, nil
}

func (s *adminService) GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResponse, error) {
	filters := withoutPaging(req.Filters)
	stats := ContentStatistics{}

	var err error
	if stats.TotalCount, err = s.reader.CountContent(ctx, filters); err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}

	if stats.ActiveCount, err = s.countActive(ctx, filters, true); err != nil {
		return nil, err
	}
	if stats.RetiredCount, err = s.countActive(ctx, filters, false); err != nil {
		return nil, err
	}

	if req.Options.IncludeStatusBreakdown {
		stats.ByStatus = make(map[string]int64)
		for _, status := range catalog.WorkflowStatuses() {
			if !statusAllowed(filters.Statuses, status) {
				continue
			}
			n, err := s.count(ctx, filters, func(f *catalog.ContentFilters) { f.Statuses = []catalog.WorkflowStatus{status} })
			if err != nil {
				return nil, err
			}
			if n > 0 {
				stats.ByStatus[string(status)] = n
			}
		}
	}

	if req.Options.IncludeCreatorBreakdown || req.Options.IncludeDateRange {
		if err := s.scan(ctx, filters, req.Options, &stats); err != nil {
			return nil, err
		}
	}

	return &StatisticsResponse{Statistics: stats, ComputedAt: time.Now().UTC()}, nil
}

// scan pages through every matching record for the breakdowns that cannot
// be expressed as a filtered count.
func (s *adminService) scan(ctx context.Context, filters catalog.ContentFilters, opts StatisticsOptions, stats *ContentStatistics) error {
	if opts.IncludeCreatorBreakdown {
		stats.ByCreator = make(map[string]int64)
	}

	filters.Limit = s.pageSize
	for offset := 0; ; offset += s.pageSize {
		filters.Offset = offset
		page, err := s.reader.ListContent(ctx, filters)
		if err != nil {
			return fmt.Errorf("list content: %w", err)
		}
		for _, c := range page {
			if opts.IncludeCreatorBreakdown {
				name := c.CreatedByName()
				if name == "" {
					name = unattributed
				}
				stats.ByCreator[name]++
			}
			if opts.IncludeDateRange && c.CreatedOn != nil {
				if stats.OldestOn == nil || c.CreatedOn.Before(stats.OldestOn.Time) {
					d := *c.CreatedOn
					stats.OldestOn = &d
				}
				if stats.NewestOn == nil || c.CreatedOn.After(stats.NewestOn.Time) {
					d := *c.CreatedOn
					stats.NewestOn = &d
				}
			}
		}
		if len(page) < s.pageSize {
			return nil
		}
	}
}

func (s *adminService) count(ctx context.Context, filters catalog.ContentFilters, narrow func(*catalog.ContentFilters)) (int64, error) {
	narrow(&filters)
	n, err := s.reader.CountContent(ctx, filters)
	if err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return n, nil
}

func withoutPaging(f catalog.ContentFilters) catalog.ContentFilters {
	f.Limit = 0
	f.Offset = 0
	return f
}

// countActive counts records whose active flag equals want. A caller filter
// on the opposite flag matches nothing.
func (s *adminService) countActive(ctx context.Context, filters catalog.ContentFilters, want bool) (int64, error) {
	if filters.Active != nil && *filters.Active != want {
		return 0, nil
	}
	return s.count(ctx, filters, func(f *catalog.ContentFilters) { f.Active = &want })
}

func statusAllowed(allowed []catalog.WorkflowStatus, status catalog.WorkflowStatus) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}
