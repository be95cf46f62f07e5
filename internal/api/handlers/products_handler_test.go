package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/models"
	"github.com/AndreiKevin/omniquest-api/internal/service"
)

func newProductsHandler(t *testing.T) *ProductsHandler {
	t.Helper()

	store, err := catalog.NewMemoryStore([]models.Product{
		{ID: "a", Name: "Milk", Brand: "Dale", Category: "Dairy", Price: 3},
		{ID: "b", Name: "Butter", Brand: "Dale", Category: "Dairy", Price: 1},
		{ID: "c", Name: "Apples", Brand: "Grove", Category: "Produce", Price: 2},
	}, 2)
	require.NoError(t, err)

	return NewProductsHandler(service.NewProductsService(store))
}

func TestProductsHandler_List(t *testing.T) {
	handler := newProductsHandler(t)

	t.Run("filters and sorts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products?category=Dairy&sort=price_asc", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ProductsListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Equal(t, 2, resp.Total)
		assert.False(t, resp.HasNext)
		require.Len(t, resp.Items, 2)
		assert.Equal(t, "b", resp.Items[0].ProductID)
		assert.Equal(t, "a", resp.Items[1].ProductID)
	})

	t.Run("defaults page and page_size", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ProductsListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, service.DefaultPageSize, resp.PageSize)
		assert.Equal(t, 3, resp.Total)
	})

	t.Run("comma-separated categories", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products?categories=Dairy,Produce", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ProductsListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Total)
	})

	tests := []struct {
		name   string
		target string
	}{
		{name: "rejects non-numeric page", target: "/products?page=abc"},
		{name: "rejects page below 1", target: "/products?page=0"},
		{name: "rejects oversized page_size", target: "/products?page_size=1000"},
		{name: "rejects unknown sort", target: "/products?sort=name_desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			handler.List(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestProductsHandler_Get(t *testing.T) {
	handler := newProductsHandler(t)

	t.Run("returns the product", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/a", nil)
		req.SetPathValue("id", "a")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ProductResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "a", resp.ProductID)
		assert.Equal(t, "Milk", resp.ProductName)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/zzz", nil)
		req.SetPathValue("id", "zzz")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})
}

func TestProductsHandler_Categories(t *testing.T) {
	handler := newProductsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	rec := httptest.NewRecorder()

	handler.Categories(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var categories []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	assert.Equal(t, []string{"Dairy", "Produce"}, categories)
}
