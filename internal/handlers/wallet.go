package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
)

// WalletHandler links portal users to wallets.
type WalletHandler struct {
	wallets *services.WalletService
}

func NewWalletHandler(wallets *services.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func (h *WalletHandler) Connect(c *fiber.Ctx) error {
	var req models.ConnectWalletRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	resp, err := h.wallets.Connect(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *WalletHandler) Status(c *fiber.Ctx) error {
	req, err := statusRequest(c)
	if err != nil {
		return err
	}
	resp, err := h.wallets.Status(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *WalletHandler) Disconnect(c *fiber.Ctx) error {
	req, err := statusRequest(c)
	if err != nil {
		return err
	}
	if err := h.wallets.Disconnect(c.UserContext(), req.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Wallet disconnected successfully"})
}

func statusRequest(c *fiber.Ctx) (models.WalletStatusRequest, error) {
	var req models.WalletStatusRequest
	if err := parseBody(c, &req); err != nil {
		return req, err
	}
	if req.UserID == "" {
		return req, models.NewValidationError("user_id is required", nil)
	}
	return req, nil
}
