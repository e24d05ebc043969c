package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/driveindex/db/searchdb"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/search"
	"github.com/meghashyamc/driveindex/validation"
)

const defaultResultsPerPage = 20

type SearchRequest struct {
	Query   string `form:"query" json:"query" validate:"required,search_query,min=1,max=1000"`
	PerPage int    `form:"per_page" json:"per_page" validate:"min=0,max=100"`
	Page    int    `form:"page" json:"page" validate:"min=0"`
}

func (r *SearchRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultResultsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type SearchResponse struct {
	Results     []searchdb.Result `json:"results"`
	PageDetails Pagination        `json:"page_details"`
}

// SetupSearch serves ranked searches over the last completed snapshot.
func SetupSearch(router *gin.Engine, logger logger.Logger, searcher search.Searcher, validator *validation.Validator) {
	router.GET("/search", handleSearch(search.New(logger, searcher), logger, validator))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request SearchRequest
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not bind search query parameters", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract query parameters")
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		offset := (request.Page - 1) * request.PerPage
		results, err := service.Search(request.Query, request.PerPage, offset)
		if err != nil {
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}

		c.Header(HeaderPaginationTotalCount, strconv.FormatUint(results.Total, 10))
		writeResponse(c, SearchResponse{
			Results:     results.Results,
			PageDetails: calculatePagination(int(results.Total), request.PerPage, offset),
		}, http.StatusOK, nil)
	}
}
