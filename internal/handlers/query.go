package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
)

// QueryHandler serves the conversational API.
type QueryHandler struct {
	assistant *services.Assistant
	sessions  *services.SessionManager
	analyzer  *services.TransactionAnalyzer
	log       *zap.Logger
}

func NewQueryHandler(assistant *services.Assistant, sessions *services.SessionManager, analyzer *services.TransactionAnalyzer, log *zap.Logger) *QueryHandler {
	return &QueryHandler{assistant: assistant, sessions: sessions, analyzer: analyzer, log: log.Named("query")}
}

// StartSession handles POST /query/start-session. The body is optional.
func (h *QueryHandler) StartSession(c *fiber.Ctx) error {
	var req models.StartSessionRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	s, err := h.sessions.Create(c.UserContext(), c.IP(), c.Get(fiber.HeaderUserAgent), req.UserID, req.Metadata)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(models.StartSessionResponse{
		SessionID: s.SessionID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		Status:    "active",
	})
}

// Query handles POST /query/.
func (h *QueryHandler) Query(c *fiber.Ctx) error {
	var req models.QueryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.assistant.Query(c.UserContext(), req, services.ClientInfo{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}
	return c.JSON(res.Body())
}

// Intent handles POST /intent/.
func (h *QueryHandler) Intent(c *fiber.Ctx) error {
	var req models.IntentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.assistant.Classify(c.UserContext(), req.UserQuery)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// GetSession handles GET /query/session/:id.
func (h *QueryHandler) GetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	s, err := h.sessions.Get(c.UserContext(), id)
	if errors.Is(err, services.ErrSessionNotFound) {
		return models.NewSessionNotFoundError(id)
	}
	if err != nil {
		return err
	}
	return c.JSON(models.SessionView{
		SessionData: *s,
		Readiness:   h.analyzer.Analyze(s.ActionDetails),
	})
}

// DeleteSession handles DELETE /query/session/:id.
func (h *QueryHandler) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.sessions.Delete(c.UserContext(), id)
	if errors.Is(err, services.ErrSessionNotFound) {
		return models.NewSessionNotFoundError(id)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session_id": id, "status": "deleted"})
}

// Stats handles GET /query/stats.
func (h *QueryHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.sessions.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
