package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/AndreiKevin/omniquest-api/internal/api/response"
	"github.com/AndreiKevin/omniquest-api/internal/models"
	"github.com/AndreiKevin/omniquest-api/internal/oqerrors"
	"github.com/AndreiKevin/omniquest-api/internal/service"
)

// ProductsQueryService defines the catalog listing operations the handler needs.
type ProductsQueryService interface {
	List(ctx context.Context, categories []string, sortRaw string, page, pageSize int) (service.ProductListing, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// ProductsHandler handles HTTP requests for product and category listings.
type ProductsHandler struct {
	service ProductsQueryService
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(service ProductsQueryService) *ProductsHandler {
	return &ProductsHandler{service: service}
}

// ProductResponse is the wire shape of one product.
type ProductResponse struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	ProductImage string  `json:"product_image"`
}

// ProductsListResponse is the response for GET /products.
type ProductsListResponse struct {
	Items    []ProductResponse `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int               `json:"total"`
	HasNext  bool              `json:"has_next"`
}

// List handles GET /products with query parameters page, page_size,
// category or categories (comma-separated), and sort.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := parsePositiveInt(q.Get("page"), 1)
	if err != nil {
		response.RespondBadRequest(w, "page must be a positive integer")

		return
	}

	pageSize, err := parsePositiveInt(q.Get("page_size"), service.DefaultPageSize)
	if err != nil {
		response.RespondBadRequest(w, "page_size must be a positive integer")

		return
	}

	categories := parseCategories(q.Get("categories"), q.Get("category"))

	listing, err := h.service.List(r.Context(), categories, q.Get("sort"), page, pageSize)
	if err != nil {
		if errors.Is(err, oqerrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())

			return
		}

		response.RespondInternalServerError(w, "Listing products failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, ProductsListResponse{
		Items:    toProductResponses(listing.Items),
		Page:     listing.Page,
		PageSize: listing.PageSize,
		Total:    listing.Total,
		HasNext:  listing.HasNext,
	})
}

// Get handles GET /products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, oqerrors.ErrNotFound):
			response.RespondNotFound(w, err.Error())
		case errors.Is(err, oqerrors.ErrValidation):
			response.RespondBadRequest(w, err.Error())
		default:
			response.RespondInternalServerError(w, "Fetching product failed")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, toProductResponse(product))
}

// Categories handles GET /categories.
func (h *ProductsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "Listing categories failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, categories)
}

// parsePositiveInt parses a query parameter that must be a positive integer;
// empty uses the default. Range checks beyond positivity belong to the service.
func parsePositiveInt(s string, defaultValue int) (int, error) {
	if s == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}

	return n, nil
}

// parseCategories merges the comma-separated "categories" parameter with the
// single-value "category" parameter, dropping empties.
func parseCategories(multi, single string) []string {
	var out []string

	for _, c := range strings.Split(multi, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}

	if single = strings.TrimSpace(single); single != "" {
		out = append(out, single)
	}

	return out
}

func toProductResponse(p models.Product) ProductResponse {
	return ProductResponse{
		ProductID:    p.ID,
		ProductName:  p.Name,
		Brand:        p.Brand,
		Category:     p.Category,
		Price:        p.Price,
		Quantity:     p.Quantity,
		ProductImage: p.Image,
	}
}

func toProductResponses(products []models.Product) []ProductResponse {
	items := make([]ProductResponse, len(products))
	for i, p := range products {
		items[i] = toProductResponse(p)
	}

	return items
}
