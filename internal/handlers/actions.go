package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
)

type ActionHandler struct {
	engine *services.ActionEngine
}

func NewActionHandler(engine *services.ActionEngine) *ActionHandler {
	return &ActionHandler{engine: engine}
}

// Run handles POST /actions/.
func (h *ActionHandler) Run(c *fiber.Ctx) error {
	var req models.ActionChainRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	resp, err := h.engine.Run(c.UserContext(), req.UserID, req.Query)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
