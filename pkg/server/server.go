package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/promptshield/promptshield/pkg/config"
	"github.com/promptshield/promptshield/pkg/version"
)

// Server is the common behavior of the HTTP surfaces.
type Server interface {
	Run() error
	Shutdown() error
}

type BaseServer struct {
	config         *config.Config
	logger         *logrus.Logger
	router         *fiber.App
	metricsStarted bool
}

func NewBaseServer(cfg *config.Config, logger *logrus.Logger) *BaseServer {
	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		BodyLimit:             1 * 1024 * 1024,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	r.Server().NoDefaultServerHeader = true
	r.Server().NoDefaultDate = true
	r.Server().NoDefaultContentType = true

	r.Use(recover.New())

	return &BaseServer{
		config: cfg,
		logger: logger,
		router: r,
	}
}

func (s *BaseServer) setupHealthCheck() {
	s.router.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"version": version.Version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
}

func (s *BaseServer) setupMetricsEndpoint() {
	if s.metricsStarted {
		return
	}
	s.metricsStarted = true

	metricsApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	metricsApp.Use(recover.New())
	metricsApp.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})

	go func() {
		addr := fmt.Sprintf(":%d", s.config.Server.MetricsPort)
		if err := metricsApp.Listen(addr); err != nil {
			if !strings.Contains(err.Error(), "address already in use") {
				s.logger.WithError(err).Error("Failed to start metrics server")
			}
		}
	}()
}
