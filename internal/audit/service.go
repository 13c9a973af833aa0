package audit

import "context"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TimelineRepository exposes the reads the timeline needs.
type TimelineRepository interface {
	Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]LogEntry, error)
}

// Service serves the audit timeline.
type Service struct {
	repo TimelineRepository
}

// NewService constructs Service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit rows. It fetches one row past the page
// size to decide whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Timeline(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
