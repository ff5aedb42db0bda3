package cmd

import (
	"context"
	"fmt"
	"golang-alerting/internal/delivery/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	ctx     context.Context
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(ctx context.Context, appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		ctx:     ctx,
		appDep:  appDep,
		handler: handler,
	}
}

func (s *HTTPServer) Start() error {
	s.appDep.log.Info("Starting HTTP server", zap.Int("port", s.appDep.cfg.API.Port))
	s.handler.SetupRoutes()
	return s.appDep.echo.Start(fmt.Sprintf(":%d", s.appDep.cfg.API.Port))
}

// Stop drains in-flight requests. The signal context is already done at this
// point, so the deadline hangs off a fresh one.
func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), shutdownTimeout)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Warn("HTTP server did not stop cleanly", zap.Error(err))
		return err
	}
	s.appDep.log.Info("HTTP server stopped successfully")
	return nil
}
