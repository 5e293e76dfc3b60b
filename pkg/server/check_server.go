package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/promptshield/promptshield/pkg/config"
	"github.com/promptshield/promptshield/pkg/guardrail"
	"github.com/promptshield/promptshield/pkg/infra/auditlogs"
	"github.com/promptshield/promptshield/pkg/types"
)

type (
	CheckServerDI struct {
		Config       *config.Config
		Logger       *logrus.Logger
		Orchestrator *guardrail.Orchestrator
		AuditTrail   auditlogs.Service
	}
	CheckServer struct {
		*BaseServer
		orchestrator *guardrail.Orchestrator
		auditTrail   auditlogs.Service
	}
)

func NewCheckServer(di CheckServerDI) *CheckServer {
	s := &CheckServer{
		BaseServer:   NewBaseServer(di.Config, di.Logger),
		orchestrator: di.Orchestrator,
		auditTrail:   di.AuditTrail,
	}
	s.setupRoutes()
	s.setupHealthCheck()
	s.setupMetricsEndpoint()
	return s
}

func (s *CheckServer) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.logger.WithField("addr", addr).Info("Starting check server")
	return s.router.Listen(addr)
}

func (s *CheckServer) Shutdown() error {
	return s.router.Shutdown()
}

func (s *CheckServer) setupRoutes() {
	v1 := s.router.Group("/v1")
	{
		v1.Post("/check", s.handleCheck)
		v1.Post("/check/input", s.handleCheckInput)
		v1.Post("/check/output", s.handleCheckOutput)
		v1.Get("/statistics", s.handleStatistics)
		v1.Get("/events", s.handleEvents)
	}
}

type checkRequest struct {
	Text string `json:"text"`
}

func (s *CheckServer) handleCheck(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	decision, err := s.orchestrator.Handle(c.Context(), req.Text)
	if err != nil {
		s.logger.WithError(err).Error("pipeline failed")
	}
	return s.respond(c, decision)
}

func (s *CheckServer) handleCheckInput(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	return s.respond(c, s.orchestrator.CheckInput(c.Context(), req.Text))
}

func (s *CheckServer) handleCheckOutput(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	return s.respond(c, s.orchestrator.CheckOutput(c.Context(), req.Text))
}

func (s *CheckServer) handleStatistics(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(s.orchestrator.GetStatistics())
}

func (s *CheckServer) handleEvents(c *fiber.Ctx) error {
	if s.auditTrail == nil {
		return c.Status(fiber.StatusOK).JSON([]auditlogs.Event{})
	}
	n := c.QueryInt("limit", 50)
	return c.Status(fiber.StatusOK).JSON(s.auditTrail.Recent(n))
}

// respond maps a decision to an HTTP status: blocking decisions are 403,
// everything else is 200 with the decision payload.
func (s *CheckServer) respond(c *fiber.Ctx, decision types.Decision) error {
	status := fiber.StatusOK
	if decision.Action.Blocks() {
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{
		"action":          decision.Action.String(),
		"state":           decision.State,
		"threat_level":    decision.ThreatLevel.String(),
		"category":        decision.Category.String(),
		"sanitized_input": decision.SanitizedInput,
		"filtered_output": decision.FilteredOutput,
		"alerts":          decision.Alerts,
	})
}
