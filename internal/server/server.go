// Package server wires the bridge components together and manages the HTTP
// listeners' lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	appconfig "github.com/lewisedginton/livechat-bridge/internal/config"
	"github.com/lewisedginton/livechat-bridge/internal/relay"
	"github.com/lewisedginton/livechat-bridge/internal/rocketchat"
	"github.com/lewisedginton/livechat-bridge/pkg/health"
	"github.com/lewisedginton/livechat-bridge/pkg/health/checkers"
	"github.com/lewisedginton/livechat-bridge/pkg/httpmiddleware"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/lewisedginton/livechat-bridge/pkg/metrics"
	"github.com/lewisedginton/livechat-bridge/pkg/utils"
)

// Server encapsulates the bridge components and lifecycle management.
type Server struct {
	cfg     *appconfig.AppConfig
	log     logger.Logger
	client  *rocketchat.Client
	bridge  *relay.Bridge
	metrics *metrics.Metrics

	webhookServer *http.Server
	healthServer  *http.Server
	cancel        context.CancelFunc
}

// New creates a Server instance with all components initialized.
func New(cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewMetrics(log),
	}

	var err error
	s.client, err = rocketchat.New(rocketchat.Config{
		BaseURL:      cfg.RocketChat.BaseURL,
		UserPassword: cfg.RocketChat.UserPassword,
		Timeout:      cfg.RocketChat.Timeout,
		Logger:       log,
		Observer:     s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Rocket.Chat client: %w", err)
	}

	s.bridge, err = relay.NewBridge(relay.Config{
		Client:            s.client,
		Logger:            log,
		Metrics:           s.metrics,
		BotUsername:       cfg.RocketChat.BotUsername,
		InactivityTimeout: cfg.Bridge.InactivityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	return s, nil
}

// Router builds the webhook router with the standard middleware chain.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.log
	mwConfig.EnableLogging = true
	mwConfig.Timeout = s.cfg.RequestTimeout
	httpmiddleware.ApplyToRouter(router, mwConfig)

	router.Post("/webhook/user2agent", s.bridge.HandleUserMessage)
	router.Post("/webhook/agent2user", s.bridge.HandleAgentMessage)
	router.Post("/admin/rooms/close-all", s.bridge.HandleCloseAll)

	return router
}

// Run starts all listeners and blocks until a shutdown signal arrives or a
// listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	s.setupGracefulShutdown()

	var errChans []chan error

	if s.cfg.Health.Enabled {
		errChans = append(errChans, s.startHealthServer())
	}

	if s.cfg.Monitoring.MetricsEnabled {
		errChans = append(errChans, s.metrics.Listen(s.cfg.Monitoring.MetricsPort))
	}

	errChans = append(errChans, s.startWebhookServer())

	s.log.Info("Bridge started",
		logger.IntField("port", s.cfg.Port),
		logger.StringField("rocketchat_url", s.cfg.RocketChat.BaseURL))

	var runErr error
	select {
	case err, ok := <-utils.MergeErrorChans(errChans...):
		if ok && err != nil {
			s.log.Error("Listener failed", logger.ErrorField(err))
			runErr = err
		}
	case <-ctx.Done():
	}

	s.shutdown()
	return runErr
}

// startWebhookServer starts the main webhook listener. The returned channel
// delivers the listener's terminal error and is closed on a clean stop.
func (s *Server) startWebhookServer() chan error {
	s.webhookServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Webhook server listening", logger.IntField("port", s.cfg.Port))
		if err := s.webhookServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()
	return errChan
}

// startHealthServer starts the health check listener. Readiness depends on
// the Rocket.Chat server answering its info endpoint.
func (s *Server) startHealthServer() chan error {
	checker := health.New(
		health.WithLogger(s.log),
		health.WithTimeout(s.cfg.Health.Timeout),
		health.WithFailureThreshold(s.cfg.Health.FailureThreshold),
	)
	checker.AddReadinessCheck(checkers.NewHTTPChecker(s.client.InfoURL(), "rocketchat"))

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Health.LivenessPath, checker.LivenessHandler())
	mux.HandleFunc(s.cfg.Health.ReadinessPath, checker.ReadinessHandler())

	s.healthServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Health.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Health check server listening", logger.IntField("port", s.cfg.Health.Port))
		if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()
	return errChan
}

// shutdown stops all listeners and cancels pending inactivity timers.
func (s *Server) shutdown() {
	s.log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.webhookServer != nil {
		if err := s.webhookServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Webhook server shutdown error", logger.ErrorField(err))
		}
	}
	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Health server shutdown error", logger.ErrorField(err))
		}
	}
	if err := s.metrics.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Metrics server shutdown error", logger.ErrorField(err))
	}

	s.bridge.Shutdown()
	s.log.Info("All listeners stopped")
}

// setupGracefulShutdown cancels the run context on SIGINT or SIGTERM.
func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))

		if s.cancel != nil {
			s.cancel()
		}

		// Force exit if graceful shutdown stalls.
		time.AfterFunc(30*time.Second, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}
