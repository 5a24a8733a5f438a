// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"github.com/gofiber/fiber/v2"

	"reviewdeck/internal/cache"
	"reviewdeck/internal/models"
)

// EnqueueProfile handles POST /api/queue
func (s *Server) EnqueueProfile(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		ProfileID uint `json:"profile_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ProfileID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("profile_id is required"))
	}

	item, err := s.upstream.EnqueueProfile(ctx, req.ProfileID)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	cache.InvalidateScrapeQueue(ctx)

	return c.Status(fiber.StatusCreated).JSON(item)
}

// GetQueue handles GET /api/queue
func (s *Server) GetQueue(c *fiber.Ctx) error {
	ctx := c.Context()

	var items []models.QueueItem
	err := cache.Aside(ctx, cache.ScrapeQueueKey, &items, cache.ScrapeQueueTTL, func() error {
		var fetchErr error
		items, fetchErr = s.upstream.ListQueue(ctx)
		return fetchErr
	})
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(fiber.Map{"items": items})
}

// RemoveQueueItem handles DELETE /api/queue/:id
func (s *Server) RemoveQueueItem(c *fiber.Ctx) error {
	ctx := c.Context()
	queueID, err := parseUintParam(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	if err := s.upstream.RemoveQueueItem(ctx, queueID); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	cache.InvalidateScrapeQueue(ctx)

	return c.SendStatus(fiber.StatusNoContent)
}

// ClearPendingQueue handles DELETE /api/queue/clear-pending
func (s *Server) ClearPendingQueue(c *fiber.Ctx) error {
	ctx := c.Context()

	if err := s.upstream.ClearPendingQueue(ctx); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	cache.InvalidateScrapeQueue(ctx)

	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerScrape handles POST /api/scrape/trigger
func (s *Server) TriggerScrape(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		ProfileID uint `json:"profile_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ProfileID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("profile_id is required"))
	}

	job, err := s.upstream.TriggerScrape(ctx, req.ProfileID)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	cache.InvalidateScrapeQueue(ctx)

	return c.Status(fiber.StatusAccepted).JSON(job)
}

// GetScrapeJobs handles GET /api/scrape/jobs?status=
func (s *Server) GetScrapeJobs(c *fiber.Ctx) error {
	ctx := c.Context()

	jobs, err := s.upstream.ListScrapeJobs(ctx, c.Query("status"))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

// GetScrapeStatus handles GET /api/scrape/status/:jobId
func (s *Server) GetScrapeStatus(c *fiber.Ctx) error {
	ctx := c.Context()
	jobID := c.Params("jobId")
	if jobID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("job ID is required"))
	}

	job, err := s.upstream.GetScrapeStatus(ctx, jobID)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(job)
}
