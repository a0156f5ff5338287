package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyline/keyline/internal/license"
	"github.com/keyline/keyline/internal/logging"
)

// Handler exposes brand and product onboarding endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new admin handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up onboarding routes. The group is expected to be
// guarded by auth.RequireAdmin.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/brands", h.createBrand)
	r.POST("/brands/:brand_id/products", h.createProduct)
}

type createBrandRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createBrand(c *gin.Context) {
	var req createBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid JSON body",
		})
		return
	}

	result, err := h.svc.CreateBrand(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"brand":   result.Brand,
		"api_key": result.APIKey, // shown once, not retrievable later
	})
}

type createProductRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid JSON body",
		})
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), c.Param("brand_id"), req.Name, req.Slug)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func writeError(c *gin.Context, err error) {
	var verr *license.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": verr.Detail})
	case errors.Is(err, license.ErrBrandExists), errors.Is(err, license.ErrProductExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists", "message": err.Error()})
	case errors.Is(err, license.ErrBrandNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	default:
		logging.L(c.Request.Context()).Error("admin request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
	}
}
