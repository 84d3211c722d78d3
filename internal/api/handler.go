package api

import (
	"fmt"

	"github.com/larsks/carcontrol/internal/cli"
)

// APIHandler implements cli.CommandHandler for the switch server.
type APIHandler struct{}

// NewAPIHandler creates a new API command handler.
func NewAPIHandler() *APIHandler {
	return &APIHandler{}
}

// Start runs the server until it receives a termination signal.
func (h *APIHandler) Start(config cli.Configurable) error {
	cfg, ok := config.(*Config)
	if !ok {
		return fmt.Errorf("invalid config type for API server")
	}

	srv, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
