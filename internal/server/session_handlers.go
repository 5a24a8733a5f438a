// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"github.com/gofiber/fiber/v2"

	"reviewdeck/internal/models"
	"reviewdeck/internal/review"
	"reviewdeck/internal/session"
)

// operator returns the token subject set by the auth middleware.
func operator(c *fiber.Ctx) string {
	op, _ := c.Locals("operator").(string)
	return op
}

// getSession looks up the caller's session or writes the error response.
func (s *Server) getSession(c *fiber.Ctx) (*session.Session, error) {
	sess, err := s.sessions.Get(c.Params("id"), operator(c))
	if err != nil {
		return nil, models.RespondWithError(c, models.StatusForError(err), err)
	}
	return sess, nil
}

// CreateSession handles POST /api/sessions. The entry point is either the
// individual fields or a canonical review path; the path wins when both are
// present.
func (s *Server) CreateSession(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		Category  string `json:"category"`
		ProfileID uint   `json:"profile_id"`
		PostID    uint   `json:"post_id"`
		Path      string `json:"path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Path != "" {
		cur, err := session.ParsePath(req.Path)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		}
		req.Category = cur.CategoryKey
		req.ProfileID = cur.ProfileID
		req.PostID = cur.PostID
	}

	sess, err := s.sessions.Create(ctx, operator(c), req.Category, req.ProfileID, req.PostID)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(sess.CurrentSnapshot())
}

// GetSession handles GET /api/sessions/:id
func (s *Server) GetSession(c *fiber.Ctx) error {
	sess, err := s.getSession(c)
	if sess == nil {
		return err
	}
	return c.JSON(sess.CurrentSnapshot())
}

// PatchDraft handles PATCH /api/sessions/:id/draft. Any subset of the
// classification fields may be sent; ratings are clamped, the draft is
// marked dirty and the autosave debounce is armed.
func (s *Server) PatchDraft(c *fiber.Ctx) error {
	sess, err := s.getSession(c)
	if sess == nil {
		return err
	}

	var patch review.Patch
	if err := c.BodyParser(&patch); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	snap, err := sess.ApplyPatch(patch)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(snap)
}

// NextPost handles POST /api/sessions/:id/next
func (s *Server) NextPost(c *fiber.Ctx) error {
	sess, err := s.getSession(c)
	if sess == nil {
		return err
	}

	snap, err := sess.Next(c.Context())
	if err != nil {
		// The session stays on its prior post; the snapshot carries the
		// warning so the client can surface it without losing its place.
		return c.Status(models.StatusForError(err)).JSON(snap)
	}
	return c.JSON(snap)
}

// PrevPost handles POST /api/sessions/:id/prev
func (s *Server) PrevPost(c *fiber.Ctx) error {
	sess, err := s.getSession(c)
	if sess == nil {
		return err
	}

	snap, err := sess.Prev(c.Context())
	if err != nil {
		return c.Status(models.StatusForError(err)).JSON(snap)
	}
	return c.JSON(snap)
}

// FlushDraft handles POST /api/sessions/:id/flush, the explicit save/retry
// action. A failed save keeps the draft dirty and reports the error.
func (s *Server) FlushDraft(c *fiber.Ctx) error {
	sess, err := s.getSession(c)
	if sess == nil {
		return err
	}

	snap, err := sess.Flush(c.Context())
	if err != nil {
		return c.Status(models.StatusForError(err)).JSON(snap)
	}
	return c.JSON(snap)
}

// SetClipping handles POST /api/sessions/:id/clip
func (s *Server) SetClipping(c *fiber.Ctx) error {
	sess, err := s.getSession(c)
	if sess == nil {
		return err
	}

	var req struct {
		Clipping bool `json:"clipping"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	return c.JSON(sess.SetClipping(req.Clipping))
}

// DeleteSession handles DELETE /api/sessions/:id
func (s *Server) DeleteSession(c *fiber.Ctx) error {
	if err := s.sessions.Delete(c.Context(), c.Params("id"), operator(c)); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
