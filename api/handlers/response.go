package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderPaginationTotalCount carries the total number of search results.
const HeaderPaginationTotalCount = "X-Pagination-Total-Count"

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data any, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.Status(statusCode)
		return
	}

	c.JSON(statusCode, response{
		Data:   data,
		Errors: errors,
	})
}

// writeError aborts the request with an error envelope.
func writeError(c *gin.Context, statusCode int, errors ...string) {
	c.Abort()
	writeResponse(c, nil, statusCode, errors)
}

type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
	TotalResults int  `json:"total_results"`
}

func calculatePagination(total, limit, offset int) Pagination {
	if limit <= 0 {
		limit = defaultResultsPerPage
	}
	currentPage := offset/limit + 1
	totalPages := max((total+limit-1)/limit, 1)

	return Pagination{
		CurrentPage:  currentPage,
		PageSize:     limit,
		TotalPages:   totalPages,
		HasNextPage:  currentPage < totalPages,
		HasPrevPage:  currentPage > 1,
		TotalResults: total,
	}
}
