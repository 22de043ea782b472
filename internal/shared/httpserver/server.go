package httpserver

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// ErrorMapper maps an error returned by a handler to a status code.
// ok is false when the mapper does not know the error.
type ErrorMapper func(err error) (status int, ok bool)

type Server struct {
	app *fiber.App
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(mappers ...ErrorMapper) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(mappers),
	})

	// logging middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("remote_addr", c.IP()),
			zap.Duration("took", time.Since(start)),
		)
		return err
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	return &Server{app: app}
}

func errorHandler(mappers []ErrorMapper) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			for _, m := range mappers {
				if s, ok := m(err); ok {
					status = s
					break
				}
			}
		}

		msg := err.Error()
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP handler failed", zap.String("path", c.Path()), zap.Error(err))
			msg = "internal server error"
		}
		return c.Status(status).JSON(ErrorResponse{Error: msg})
	}
}

// App exposes the fiber app so each module can mount its routes.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr until SIGINT/SIGTERM or ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case <-ctx.Done():
		}

		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.app.ShutdownWithContext(shutdownCtx)
	}()

	log.Info("HTTP server started", zap.String("addr", addr))
	return s.app.Listen(addr)
}
