package http

import (
	"github.com/go-sale-provisioner/internal/application/health"
	"github.com/go-sale-provisioner/internal/application/provision"
	"github.com/go-sale-provisioner/internal/logger"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Provisioner provision.Service
	Health      health.Service
	Logger      *logger.Logger
}
