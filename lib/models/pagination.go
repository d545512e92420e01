package models

import "traininglog/lib/constants"

// PageRequest is a 1-based page selection
type PageRequest struct {
	Page     int
	PageSize int
}

// NewPageRequest applies the default page (1) and size (25) to unset values and caps the size
func NewPageRequest(page, pageSize int) PageRequest {
	if page < 1 {
		page = constants.DEFAULT_PAGE
	}
	if pageSize < 1 {
		pageSize = constants.DEFAULT_PAGE_SIZE
	}
	if pageSize > constants.MAX_PAGE_SIZE {
		pageSize = constants.MAX_PAGE_SIZE
	}
	return PageRequest{Page: page, PageSize: pageSize}
}

// Offset is the number of rows skipped before this page
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns ceil(totalCount / pageSize)
func TotalPages(totalCount int64, pageSize int) int {
	if pageSize < 1 || totalCount <= 0 {
		return 0
	}
	return int((totalCount + int64(pageSize) - 1) / int64(pageSize))
}

// TrainingSessionPage is the response of Listar
type TrainingSessionPage struct {
	Sessions   []TrainingSession `json:"entrenamientos"`
	Page       int               `json:"numPagina"`
	PageSize   int               `json:"cantElemPagina"`
	TotalCount int64             `json:"totalElementos"`
	TotalPages int               `json:"totalPaginas"`
}
