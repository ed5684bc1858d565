// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/garde/internal/core/effects"
	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/metrics"
	"github.com/example/garde/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor turns effects into log lines and outbound events.
type DefaultEffectExecutor struct {
	publisher secondary.EventPublisher
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// NewEffectExecutor creates a new DefaultEffectExecutor. A nil publisher
// drops events after logging them.
func NewEffectExecutor(publisher secondary.EventPublisher, logger *zap.Logger, rec *metrics.Recorder) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{
		publisher: publisher,
		logger:    logging.OrNop(logger),
		metrics:   rec,
	}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.ContactRequestedEffect:
		return e.publish(ctx, secondary.Event{
			Type:       effects.TypeContactRequested,
			Key:        typed.CaseID,
			OccurredAt: typed.RequestedAt,
			Data: map[string]any{
				"case_id":   typed.CaseID,
				"level":     typed.Level,
				"attempt":   typed.AttemptNumber,
				"channel":   typed.Channel,
				"recipient": typed.RecipientID,
			},
		})
	case effects.StatusChangedEffect:
		return e.publish(ctx, secondary.Event{
			Type:       effects.TypeStatusChanged,
			Key:        typed.EntityID,
			OccurredAt: typed.At,
			Data: map[string]any{
				"entity":    typed.Entity,
				"entity_id": typed.EntityID,
				"from":      typed.From,
				"to":        typed.To,
				"actor":     typed.ActorID,
				"detail":    typed.Detail,
			},
		})
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.executeLog(typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeLog(eff effects.LogEffect) {
	fields := make([]zap.Field, 0, len(eff.Fields))
	for k, v := range eff.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch eff.Level {
	case "debug":
		e.logger.Debug(eff.Message, fields...)
	case "warn":
		e.logger.Warn(eff.Message, fields...)
	case "error":
		e.logger.Error(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
}

func (e *DefaultEffectExecutor) publish(ctx context.Context, ev secondary.Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	if e.publisher == nil {
		e.logger.Debug("event dropped, no publisher", zap.String("type", ev.Type), zap.String("key", ev.Key))
		return nil
	}
	err := e.publisher.Publish(ctx, ev)
	e.metrics.EventPublished(ev.Type, err)
	if err != nil {
		return fmt.Errorf("publish %s for %s: %w", ev.Type, ev.Key, err)
	}
	return nil
}

var _ EffectExecutor = (*DefaultEffectExecutor)(nil)

// dispatch runs effects after the aggregate has been saved. Transport
// failures are logged, never returned: the state change already happened.
func dispatch(ctx context.Context, executor EffectExecutor, logger *zap.Logger, effs ...effects.Effect) {
	if executor == nil || len(effs) == 0 {
		return
	}
	if err := executor.Execute(ctx, effs); err != nil {
		logger.Warn("effect execution failed", zap.Error(err))
	}
}

func statusChanged(entity, id, from, to, actorID, detail string, at time.Time) effects.Effect {
	return effects.StatusChangedEffect{
		Entity:   entity,
		EntityID: id,
		From:     from,
		To:       to,
		ActorID:  actorID,
		Detail:   detail,
		At:       at,
	}
}
