package controllers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"stylemeapi/models"
	"stylemeapi/services"
)

type StoreProductResponse struct {
	ID       uint    `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Brand    string  `json:"brand"`
	Price    float64 `json:"price"`
	Uri      *string `json:"uri,omitempty"`
}

type StoreController struct {
	URLCache services.URLCacheServiceProvider
}

func (controller *StoreController) StoreRoutes(g *echo.Group) {
	g.GET("/products", func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)

		query := db.Model(&models.StoreProduct{}).Order("created_at desc")
		if category := c.QueryParam("category"); category != "" {
			if !models.ValidClothingCategory(category) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown category"})
			}
			query = query.Where("category = ?", category)
		}
		var products []models.StoreProduct
		if err := query.Find(&products).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch store products"})
		}

		responses := make([]StoreProductResponse, 0, len(products))
		for _, product := range products {
			var uri *string
			if product.ImageURL != nil && *product.ImageURL != "" {
				url, err := controller.URLCache.GetReadURL(c.Request().Context(), *product.ImageURL)
				if err != nil {
					log.Printf("Could not presign store image '%s': %v", *product.ImageURL, err)
				} else {
					uri = &url
				}
			}
			responses = append(responses, StoreProductResponse{
				ID:       product.ID,
				Name:     product.Name,
				Category: product.Category,
				Brand:    product.Brand,
				Price:    product.Price,
				Uri:      uri,
			})
		}
		return c.JSON(http.StatusOK, echo.Map{"products": responses})
	})
}
