// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"reviewdeck/internal/models"
)

// parseUintParam parses a positive integer path parameter.
func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || v == 0 {
		return 0, models.NewValidationError(name + " must be a positive integer")
	}
	return uint(v), nil
}

// parseUintQuery parses a positive integer query parameter.
func parseUintQuery(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil || v == 0 {
		return 0, models.NewValidationError(name + " must be a positive integer")
	}
	return uint(v), nil
}
