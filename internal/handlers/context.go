package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfex/backend/internal/models"
)

// getUserIDFromContext returns the authenticated user ID set by the JWT
// middleware, or 0 when the request is unauthenticated.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return 0
	}
	return claims.UserID
}
