package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	productsvc "github.com/crumbhaus/bakehouse-backend/internal/products"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
)

type productResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	BoxSize    int       `json:"box_size,omitempty"`
	InStock    bool      `json:"in_stock"`
}

func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:         product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		BoxSize:    product.BoxSize,
		InStock:    product.HasUnlimitedStock() || product.Stock > 0,
	}
}

func ListProducts(repo productsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := repo.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(items))
		for i := range items {
			out = append(out, newProductResponse(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func GetProduct(repo productsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.GetByID(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}
