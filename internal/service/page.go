package service

import "github.com/Skotchmaster/taskpilot/pkg/util"

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type PageQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

func (q PageQuery) bounds() (page, offset, limit int) {
	offset, limit = util.Calculate(q.Page, q.Limit)
	return offset/limit + 1, offset, limit
}

func newPagination(page, limit int, total int64) Pagination {
	return Pagination{Page: page, Limit: limit, Total: total, Pages: util.TotalPages(total, limit)}
}
