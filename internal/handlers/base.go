// Package handlers provides the HTTP handlers for the engine's query API.
package handlers

import (
	"context"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/metrics"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
)

// EngineService is the surface the handlers consume. The interface allows
// handlers to be tested without a real engine.
type EngineService interface {
	ListAlerts(f store.Filter) []store.Alert
	MarkRead(alertID string) error
	Dismiss(alertID string) error
	RequestTransition(ctx context.Context, entityID string, to entity.Status, actor string, override bool) (*entity.Entity, []store.Alert, error)
	GetEntities(ctx context.Context, kind entity.Kind) ([]*entity.Entity, error)
}

// MetricsSource exposes the current metrics snapshot.
type MetricsSource interface {
	GetSnapshot() *metrics.EngineMetrics
}

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	svc     EngineService
	metrics MetricsSource
}

// NewHandlers creates a new handlers instance. metricsSource may be nil
// when metrics are disabled.
func NewHandlers(svc EngineService, metricsSource MetricsSource) *Handlers {
	return &Handlers{
		svc:     svc,
		metrics: metricsSource,
	}
}
