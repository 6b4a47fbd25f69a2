// Package server wires the HTTP surface of the math planning service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/mathsense/internal/profile"
	apiv1 "github.com/hrygo/mathsense/server/router/api/v1"
)

// Server is the HTTP server of the service.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	apiService *apiv1.APIV1Service
}

// NewServer creates the server and wires the API services.
func NewServer(_ context.Context, instanceProfile *profile.Profile) (*Server, error) {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true

	echoServer.Use(middleware.Recover())

	apiService, err := apiv1.NewAPIV1Service(instanceProfile)
	if err != nil {
		return nil, fmt.Errorf("create api v1 service: %w", err)
	}
	apiService.RegisterRoutes(echoServer)

	return &Server{
		Profile:    instanceProfile,
		echoServer: echoServer,
		apiService: apiService,
	}, nil
}

// Start begins serving; it blocks until the listener stops.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "addr", addr, "mode", s.Profile.Mode)
	return s.echoServer.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	slog.Info("server shutdown")
}
