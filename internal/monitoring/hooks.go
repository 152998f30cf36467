package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ObservabilityHook defines hooks around command execution.
type ObservabilityHook interface {
	// Called before a command starts executing.
	OnCommandStart(ctx context.Context, command string, metadata map[string]any)

	// Called after a command completes (success or failure).
	OnCommandComplete(ctx context.Context, command string, duration time.Duration, err error, metadata map[string]any)

	// Called when a command is denied by the permission engine.
	OnAccessDenied(ctx context.Context, command string, actorID string, reason string)
}

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook.
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnCommandStart(ctx context.Context, command string, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnCommandComplete(ctx context.Context, command string, duration time.Duration, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnAccessDenied(ctx context.Context, command string, actorID string, reason string) {
}

// ZapObservabilityHook logs command lifecycle through a zap logger.
type ZapObservabilityHook struct {
	logger *zap.Logger
}

func NewZapObservabilityHook(logger *zap.Logger) *ZapObservabilityHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObservabilityHook{logger: logger}
}

func (h *ZapObservabilityHook) OnCommandStart(ctx context.Context, command string, metadata map[string]any) {
	h.logger.Debug("command start",
		zap.String("command", command),
		zap.Any("metadata", metadata),
	)
}

func (h *ZapObservabilityHook) OnCommandComplete(ctx context.Context, command string, duration time.Duration, err error, metadata map[string]any) {
	if err != nil {
		h.logger.Warn("command failed",
			zap.String("command", command),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	h.logger.Info("command complete",
		zap.String("command", command),
		zap.Duration("duration", duration),
	)
}

func (h *ZapObservabilityHook) OnAccessDenied(ctx context.Context, command string, actorID string, reason string) {
	h.logger.Warn("access denied",
		zap.String("command", command),
		zap.String("actor_id", actorID),
		zap.String("reason", reason),
	)
}
