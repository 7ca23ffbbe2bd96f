package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/infinity-samurai/food-ai/internal/version"
)

// Health reports process liveness.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
