package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyline/keyline/internal/license"
)

// contextKeyPrincipal is the gin context key holding the resolved Principal.
const contextKeyPrincipal = "auth.principal"

// RequireBrand authenticates the X-API-Key header and stores a
// BrandPrincipal in the context. Aborts with 401/403 on failure.
func RequireBrand(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brand, err := mgr.AuthenticateBrand(c.Request.Context(), c.GetHeader(HeaderAPIKey))
		if err != nil {
			status := http.StatusForbidden
			if err == ErrNoCredentials {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":   "authentication_failed",
				"message": "valid X-API-Key header required",
			})
			return
		}
		c.Set(contextKeyPrincipal, Principal(BrandPrincipal{Brand: brand}))
		c.Next()
	}
}

// RequireLicenseKey authenticates the X-License-Key header and stores a
// LicenseKeyPrincipal in the context.
func RequireLicenseKey(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := mgr.AuthenticateLicenseKey(c.Request.Context(), c.GetHeader(HeaderLicenseKey))
		if err != nil {
			status := http.StatusForbidden
			if err == ErrNoCredentials {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":   "authentication_failed",
				"message": "valid X-License-Key header required",
			})
			return
		}
		c.Set(contextKeyPrincipal, Principal(LicenseKeyPrincipal{Key: key}))
		c.Next()
	}
}

// RequireAdmin guards onboarding endpoints with a shared admin secret.
// When no secret is configured the admin API is disabled entirely.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || !SecretsEqual(c.GetHeader(HeaderAdminSecret), secret) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "admin_secret_required",
				"message": "valid X-Admin-Secret header required",
			})
			return
		}
		c.Next()
	}
}

// BrandFrom extracts the authenticated brand from the context.
func BrandFrom(c *gin.Context) (*license.Brand, bool) {
	p, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return nil, false
	}
	bp, ok := p.(BrandPrincipal)
	if !ok {
		return nil, false
	}
	return bp.Brand, true
}

// LicenseKeyFrom extracts the authenticated license key from the context.
func LicenseKeyFrom(c *gin.Context) (*license.LicenseKey, bool) {
	p, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return nil, false
	}
	kp, ok := p.(LicenseKeyPrincipal)
	if !ok {
		return nil, false
	}
	return kp.Key, true
}

// SetBrand stores a brand principal directly (used by handler tests).
func SetBrand(c *gin.Context, b *license.Brand) {
	c.Set(contextKeyPrincipal, Principal(BrandPrincipal{Brand: b}))
}

// SetLicenseKey stores a license key principal directly (used by handler tests).
func SetLicenseKey(c *gin.Context, k *license.LicenseKey) {
	c.Set(contextKeyPrincipal, Principal(LicenseKeyPrincipal{Key: k}))
}
