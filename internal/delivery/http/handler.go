package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/internal/infrastructure/store"
	"github.com/shopsight/backend/internal/usecase"
	"github.com/shopsight/backend/pkg/logger"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline *usecase.Pipeline
	factory  *store.Factory
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline *usecase.Pipeline, factory *store.Factory) *Handler {
	return &Handler{pipeline: pipeline, factory: factory}
}

// recommendationRequest is one catalogue submission. History is keyed by
// product id and optional.
type recommendationRequest struct {
	Products []domain.CatalogueProduct            `json:"products" binding:"required"`
	History  map[string][]domain.SalesObservation `json:"history"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shopsight-backend",
		"version": "1.0.0",
	})
}

// Recommend runs the pricing pipeline for the submitted catalogue and
// returns one recommendation per valid product plus run diagnostics.
func (h *Handler) Recommend(c *gin.Context) {
	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	adapters := h.factory.Build(req.Products)

	result, err := h.pipeline.Run(c.Request.Context(), req.Products, adapters, req.History)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyCatalogue), errors.Is(err, domain.ErrInvalidProduct):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrNormalizationFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "currency normalization failed for all listings"})
		default:
			logger.Error().Err(err).Msg("pricing run failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
