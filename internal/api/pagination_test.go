package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, Limit: 50, Offset: 0}},
		{"?page=3&limit=10", PaginationParams{Page: 3, Limit: 10, Offset: 20}},
		{"?page=-1&limit=0", PaginationParams{Page: 1, Limit: 50, Offset: 0}},
		{"?page=2&limit=9999", PaginationParams{Page: 2, Limit: 500, Offset: 500}},
		{"?page=abc", PaginationParams{Page: 1, Limit: 50, Offset: 0}},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/api/subscribers"+tt.query, nil)
		assert.Equal(t, tt.want, ParsePagination(r, 50, 500), tt.query)
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse([]string{"a"}, PaginationParams{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 1, resp.Pagination.TotalPages)
	assert.False(t, resp.Pagination.HasMore)

	resp = NewPaginatedResponse(nil, PaginationParams{Page: 2, Limit: 10}, 31)
	assert.Equal(t, 4, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasMore)
}
