// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"github.com/gofiber/fiber/v2"

	"reviewdeck/internal/cache"
	"reviewdeck/internal/models"
)

// GetCategories handles GET /api/categories
func (s *Server) GetCategories(c *fiber.Ctx) error {
	ctx := c.Context()

	var categories []models.Category
	err := cache.Aside(ctx, cache.CategoriesKey, &categories, cache.CategoriesTTL, func() error {
		var fetchErr error
		categories, fetchErr = s.upstream.ListCategories(ctx)
		return fetchErr
	})
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(fiber.Map{"categories": categories})
}

// GetProfilesWithReviewStats handles GET /api/profiles/with-review-stats?category=
func (s *Server) GetProfilesWithReviewStats(c *fiber.Ctx) error {
	ctx := c.Context()
	category := c.Query("category")
	if category == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("category query parameter is required"))
	}

	profiles, err := s.resolver.CategoryProfiles(ctx, category)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(fiber.Map{"profiles": profiles})
}

// GetPostsWithReviewStatus handles GET /api/posts/with-review-status?profile_id=
func (s *Server) GetPostsWithReviewStatus(c *fiber.Ctx) error {
	ctx := c.Context()
	profileID, err := parseUintQuery(c, "profile_id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	posts, err := s.resolver.ProfilePosts(ctx, profileID)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(fiber.Map{"posts": posts, "total": len(posts)})
}
