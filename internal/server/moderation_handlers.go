package server

import (
	"strings"

	"promptguard/internal/models"
	"promptguard/internal/moderation"

	"github.com/gofiber/fiber/v2"
)

const maxUserIDLen = 64

// CheckContent runs the matcher over a single text field.
func (s *Server) CheckContent(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	// Empty text is simply clean; the matcher fails open on missing input.
	return c.JSON(s.moderationService.CheckContent(req.Text))
}

// CheckFullContent checks all free-text fields of a design request combined.
func (s *Server) CheckFullContent(c *fiber.Ctx) error {
	var req moderation.DesignSelections
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	return c.JSON(s.moderationService.CheckFullContent(req))
}

// GetUserHistory reports whether a user should be gated on violation history
// alone. Ledger outages surface here as an allow verdict, never an error.
func (s *Server) GetUserHistory(c *fiber.Ctx) error {
	userID, err := s.parseUserID(c)
	if err != nil {
		return nil
	}

	return c.JSON(s.moderationService.CheckUserHistory(c.UserContext(), userID))
}

// RecordViolation persists a violation after a positive match and returns the
// enforcement decision for the caller to apply.
func (s *Server) RecordViolation(c *fiber.Ctx) error {
	var req struct {
		UserID     string   `json:"user_id"`
		Content    string   `json:"content"`
		FoundTerms []string `json:"found_terms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || len(req.UserID) > maxUserIDLen {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}
	if len(req.FoundTerms) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("found_terms must not be empty"))
	}

	result, err := s.moderationService.RecordViolation(
		c.UserContext(),
		req.UserID,
		req.Content,
		req.FoundTerms,
		c.IP(),
		c.Get("User-Agent"),
	)
	if err != nil {
		// The violation was detected but not logged. Surface the failure so
		// the caller can still choose to reject the original request.
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ListViolations returns a page of the violation ledger for admin audit.
func (s *Server) ListViolations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 200 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("limit must be between 1 and 200"))
	}
	if offset < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("offset must not be negative"))
	}

	violations, total, err := s.ledger.List(c.UserContext(), limit, offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"violations": violations,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// GetUserViolations returns a user's recent ledger entries plus the current
// history verdict, for admin review of an escalation.
func (s *Server) GetUserViolations(c *fiber.Ctx) error {
	userID, err := s.parseUserID(c)
	if err != nil {
		return nil
	}

	violations, err := s.ledger.ListByUser(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"user_id":    userID,
		"violations": violations,
		"history":    s.moderationService.CheckUserHistory(c.UserContext(), userID),
	})
}

var errInvalidParam = models.NewValidationError("invalid user id")

// parseUserID validates the :id route parameter. On failure it writes the
// error response itself and returns a sentinel error so handlers can bail
// with `return nil`.
func (s *Server) parseUserID(c *fiber.Ctx) (string, error) {
	userID := strings.TrimSpace(c.Params("id"))
	if userID == "" || len(userID) > maxUserIDLen {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, errInvalidParam)
		return "", errInvalidParam
	}
	return userID, nil
}
