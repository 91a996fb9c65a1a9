package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crashlens/crashlens/internal/storage/sqlite"
)

type HistoryHandler struct {
	db *sqlite.Client
}

func NewHistoryHandler(db *sqlite.Client) *HistoryHandler {
	return &HistoryHandler{db: db}
}

func (h *HistoryHandler) HandleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	records, err := h.db.ListClassifications(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load classification history",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(records),
		"results": records,
	})
}

func (h *HistoryHandler) HandleStats(c *fiber.Ctx) error {
	counts, err := h.db.CountByRootCause()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load classification stats",
		})
	}

	return c.JSON(fiber.Map{
		"by_root_cause": counts,
	})
}
