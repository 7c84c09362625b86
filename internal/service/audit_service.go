package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/events"
	"github.com/spec-kit/token-auth-service/internal/observability"
)

// AuditService records authentication events in logs and metrics.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.metrics.RecordAuth(observability.AuthLoginSucceeded)
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("username", event.Username),
		zap.Time("timestamp", event.Timestamp),
	}
	if payload, ok := event.Payload.(events.LoginSucceededPayload); ok {
		fields = append(fields,
			zap.String("token_id", payload.TokenID),
			zap.Time("expires_at", payload.ExpiresAt))
	}
	a.logger.Info("LoginSucceeded", fields...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	a.metrics.RecordAuth(observability.AuthLoginFailed)
	a.logger.Info("LoginFailed",
		zap.String("event_id", event.ID),
		zap.String("username", event.Username),
		zap.Time("timestamp", event.Timestamp))
	return nil
}
