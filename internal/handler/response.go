package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Response is the one envelope shape every endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondData(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

func respondMessage(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: false, Message: message})
}

// Pagination is the envelope fragment shared by every list endpoint
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int(total+int64(limit)-1) / limit
	return Pagination{CurrentPage: page, TotalPages: totalPages, Total: total, Limit: limit}
}

// paging parses page/limit query parameters. Limit is capped at 100;
// page defaults to 1.
func paging(c echo.Context, defaultLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
