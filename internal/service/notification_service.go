package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/events"
)

// NotificationService handles emitting notifications for import lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventImportCommitted, n.handleImportCommitted)
	n.dispatcher.Subscribe(events.EventGhostsDetected, n.handleGhostsDetected)
	n.dispatcher.Subscribe(events.EventGhostResolved, n.handleGhostResolved)
	n.dispatcher.Subscribe(events.EventImportAborted, n.handleImportAborted)
}

func (n *NotificationService) handleImportCommitted(ctx context.Context, event events.Event) error {
	n.logger.Info("ImportCommitted", zap.String("import_id", event.ImportID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleGhostsDetected(ctx context.Context, event events.Event) error {
	n.logger.Info("GhostsDetected", zap.String("import_id", event.ImportID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleGhostResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("GhostResolved", zap.String("import_id", event.ImportID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleImportAborted(ctx context.Context, event events.Event) error {
	n.logger.Info("ImportAborted", zap.String("import_id", event.ImportID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("event_type", string(event.Type)))
}
