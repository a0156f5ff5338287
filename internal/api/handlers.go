// Package api exposes the brand and product HTTP APIs over the license engine.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/internal/license"
	"github.com/keyline/keyline/internal/logging"
	"github.com/keyline/keyline/internal/validation"
)

// Handler provides the HTTP endpoints for the brand and product APIs.
type Handler struct {
	svc    *license.Service
	logger *slog.Logger
}

// NewHandler creates a new license handler.
func NewHandler(svc *license.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterBrandRoutes sets up the brand-authenticated routes.
func (h *Handler) RegisterBrandRoutes(r *gin.RouterGroup) {
	r.POST("/licenses", h.Provision)
	r.POST("/licenses/:license_key/add-product", h.AddProduct)
	r.PATCH("/licenses/:license_id/lifecycle", h.UpdateLifecycle)
	r.GET("/licenses/by-email", h.ListByEmail)
}

// RegisterProductRoutes sets up the license-key-authenticated routes.
func (h *Handler) RegisterProductRoutes(r *gin.RouterGroup) {
	r.POST("/activate", h.Activate)
	r.POST("/deactivate", h.Deactivate)
	r.GET("/status", h.CheckStatus)
}

// ---------- Brand API ----------

// Provision handles POST /api/brand/licenses.
func (h *Handler) Provision(c *gin.Context) {
	brand, ok := auth.BrandFrom(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	var req struct {
		CustomerEmail string                   `json:"customer_email" binding:"required"`
		Products      []license.ProductRequest `json:"products" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "customer_email and products are required",
		})
		return
	}

	email := validation.NormalizeEmail(req.CustomerEmail)
	result, err := h.svc.Provision(c.Request.Context(), brand, email, req.Products)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":         "success",
		"message":        "License provisioned successfully",
		"license_key":    result.Key.Key,
		"customer_email": result.Key.CustomerEmail,
		"brand":          brand.Name,
		"licenses":       result.Licenses,
		"created":        result.Created,
	})
}

// AddProduct handles POST /api/brand/licenses/:license_key/add-product.
func (h *Handler) AddProduct(c *gin.Context) {
	brand, ok := auth.BrandFrom(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	var req struct {
		ProductSlug    string `json:"product_slug" binding:"required"`
		ExpirationDate string `json:"expiration_date"`
		MaxSeats       *int   `json:"max_seats"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "product_slug is required",
		})
		return
	}

	keyString := c.Param("license_key")
	lic, err := h.svc.AddProduct(c.Request.Context(), brand, keyString, req.ProductSlug, req.ExpirationDate, req.MaxSeats)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":      "success",
		"message":     "Product added successfully",
		"license_key": keyString,
		"license":     lic,
	})
}

// UpdateLifecycle handles PATCH /api/brand/licenses/:license_id/lifecycle.
func (h *Handler) UpdateLifecycle(c *gin.Context) {
	brand, ok := auth.BrandFrom(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	var req struct {
		Action         string `json:"action" binding:"required"`
		ExpirationDate string `json:"expiration_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "action is required",
		})
		return
	}

	lic, err := h.svc.UpdateLifecycle(c.Request.Context(), brand, c.Param("license_id"), license.Action(req.Action), req.ExpirationDate)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "License " + req.Action + " applied successfully",
		"license": lic,
	})
}

// ListByEmail handles GET /api/brand/licenses/by-email?email=...
func (h *Handler) ListByEmail(c *gin.Context) {
	if _, ok := auth.BrandFrom(c); !ok {
		abortUnauthenticated(c)
		return
	}

	email := validation.NormalizeEmail(c.Query("email"))
	entries, err := h.svc.ListByEmail(c.Request.Context(), email)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":          email,
		"total_licenses": len(entries),
		"licenses":       entries,
	})
}

// ---------- Product API ----------

// Activate handles POST /api/product/activate.
func (h *Handler) Activate(c *gin.Context) {
	key, ok := auth.LicenseKeyFrom(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	var req struct {
		InstanceID  string `json:"instance_id" binding:"required"`
		ProductSlug string `json:"product_slug" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "instance_id and product_slug are required",
		})
		return
	}

	result, err := h.svc.Activate(c.Request.Context(), key, req.ProductSlug, req.InstanceID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	message := "Instance already activated"
	if result.Created {
		status = http.StatusCreated
		message = "License activated successfully"
	}
	c.JSON(status, gin.H{
		"status":          "success",
		"message":         message,
		"activation":      result.Activation,
		"remaining_seats": result.RemainingSeats,
	})
}

// Deactivate handles POST /api/product/deactivate.
func (h *Handler) Deactivate(c *gin.Context) {
	key, ok := auth.LicenseKeyFrom(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	var req struct {
		InstanceID  string `json:"instance_id" binding:"required"`
		ProductSlug string `json:"product_slug" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "instance_id and product_slug are required",
		})
		return
	}

	remaining, err := h.svc.Deactivate(c.Request.Context(), key, req.ProductSlug, req.InstanceID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"message":         "License deactivated successfully",
		"remaining_seats": remaining,
	})
}

// CheckStatus handles GET /api/product/status.
func (h *Handler) CheckStatus(c *gin.Context) {
	key, ok := auth.LicenseKeyFrom(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	entries, err := h.svc.CheckStatus(c.Request.Context(), key)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license_key":    key.Key,
		"customer_email": key.CustomerEmail,
		"total_licenses": len(entries),
		"licenses":       entries,
	})
}

// ---------- Error mapping ----------

// writeError maps core errors onto HTTP responses. Store failures become a
// generic 500 so internals never leak to callers.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *license.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": verr.Detail,
		})
	case errors.Is(err, license.ErrSeatLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "seat_limit_exceeded",
			"message": "no seats remaining on this license",
		})
	case errors.Is(err, license.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "license does not belong to your brand",
		})
	case errors.Is(err, license.ErrLicenseExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "license_exists",
			"message": "license already exists for this key and product",
		})
	case errors.Is(err, license.ErrBrandNotFound),
		errors.Is(err, license.ErrProductNotFound),
		errors.Is(err, license.ErrLicenseKeyNotFound),
		errors.Is(err, license.ErrLicenseNotFound),
		errors.Is(err, license.ErrActivationNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, license.ErrKeyGenExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "key_generation_exhausted",
			"message": "could not generate a unique license key, please retry",
		})
	default:
		logging.L(c.Request.Context()).Error("request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "an unexpected error occurred",
		})
	}
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "authentication_required",
		"message": "request is not authenticated",
	})
}
