package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/embedding"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/vectordb"
)

const checkTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps are the dependencies probed by the health endpoints.
type HealthDeps struct {
	Config   *config.Config
	Cache    storage.Store
	Sessions *services.SessionManager
	Embedder embedding.Embedder
	Vectors  vectordb.Store
	Models   *llm.Router
	Wallets  *services.WalletService
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	deps    HealthDeps
	log     *zap.Logger
}

func NewHealthHandler(version string, deps HealthDeps, log *zap.Logger) *HealthHandler {
	return &HealthHandler{Version: version, deps: deps, log: log.Named("health")}
}

// Check is the cheap liveness summary served on /health/.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"message":   "DeFi assistant API is running",
		"timestamp": time.Now().UTC(),
		"version":   h.Version,
	})
}

// Detailed probes every dependency and answers 503 when any is down.
func (h *HealthHandler) Detailed(c *fiber.Ctx) error {
	start := time.Now()
	ctx := c.UserContext()

	checks := map[string]pinger{
		"redis":           h.deps.Cache,
		"embedding_model": h.deps.Embedder,
		"pinecone":        h.deps.Vectors,
		"database":        h.deps.Wallets,
	}
	statuses := make(map[string]models.ServiceHealth, len(checks)+1)
	healthy := true
	for name, p := range checks {
		statuses[name] = probe(ctx, p)
	}
	statuses["llm"] = serviceHealth(h.deps.Models.Check(ctx))
	for name, s := range statuses {
		if s.Status != "healthy" {
			healthy = false
			h.log.Warn("dependency unhealthy", zap.String("service", name), zap.Stringp("error", s.Error))
		}
	}

	report := models.DetailedHealth{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Mode:      h.deps.Config.Mode(),
		Services:  statuses,
	}
	if stats, err := h.deps.Sessions.Stats(ctx); err == nil {
		report.Sessions = &stats
	}
	status := fiber.StatusOK
	if !healthy {
		report.Status = "degraded"
		status = fiber.StatusServiceUnavailable
	}
	report.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	return c.Status(status).JSON(report)
}

// Models describes the routed language models.
func (h *HealthHandler) Models(c *fiber.Ctx) error {
	err := h.deps.Models.Check(c.UserContext())
	return c.JSON(fiber.Map{
		"model_system": h.deps.Models.Info(),
		"available":    err == nil,
		"status":       serviceHealth(err),
	})
}

// Ready reports whether the session cache and the vector index are reachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx := c.UserContext()
	cache := probe(ctx, h.deps.Cache)
	vectors := probe(ctx, h.deps.Vectors)
	if cache.Status != "healthy" || vectors.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "not_ready",
			"services": fiber.Map{"redis": cache, "pinecone": vectors},
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive", "timestamp": time.Now().UTC()})
}

func (h *HealthHandler) Mode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"mode":       h.deps.Config.Mode(),
		"demo_mode":  h.deps.Config.DemoMode,
		"llm":        h.deps.Config.LLM.Provider,
		"embeddings": h.deps.Embedder.Name(),
		"vectors":    h.deps.Vectors.Name(),
		"sessions":   h.deps.Cache.Name(),
	})
}

func probe(ctx context.Context, p pinger) models.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return serviceHealth(p.Ping(ctx))
}

func serviceHealth(err error) models.ServiceHealth {
	if err != nil {
		msg := err.Error()
		return models.ServiceHealth{Status: "unhealthy", Error: &msg}
	}
	return models.ServiceHealth{Status: "healthy"}
}
