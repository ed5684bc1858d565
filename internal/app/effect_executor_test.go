package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/garde/internal/core/effects"
	"github.com/example/garde/internal/metrics"
)

func TestEffectExecutor_PublishesEvents(t *testing.T) {
	pub := &mockPublisher{}
	executor := NewEffectExecutor(pub, nil, metrics.New())
	at := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)

	err := executor.Execute(context.Background(), []effects.Effect{
		effects.ContactRequestedEffect{CaseID: "ESC-001", Level: 1, AttemptNumber: 1, Channel: "sms", RecipientID: "USR-001", RequestedAt: at},
		effects.CompositeEffect{Effects: []effects.Effect{
			effects.StatusChangedEffect{Entity: "roster", EntityID: "ROSTER-001", From: "draft", To: "pending", ActorID: "USR-CH1", At: at},
			effects.NoEffect{},
		}},
		effects.LogEffect{Level: "warn", Message: "ignored by the publisher"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}

	contact := pub.events[0]
	if contact.Type != effects.TypeContactRequested || contact.Key != "ESC-001" {
		t.Errorf("unexpected contact event: %+v", contact)
	}
	if contact.Data["recipient"] != "USR-001" || contact.Data["level"] != 1 {
		t.Errorf("unexpected contact payload: %v", contact.Data)
	}
	status := pub.events[1]
	if status.Type != effects.TypeStatusChanged || status.Data["to"] != "pending" || !status.OccurredAt.Equal(at) {
		t.Errorf("unexpected status event: %+v", status)
	}
}

func TestEffectExecutor_PublishFailure(t *testing.T) {
	executor := NewEffectExecutor(&mockPublisher{err: errors.New("connection refused")}, nil, nil)
	err := executor.Execute(context.Background(), []effects.Effect{
		effects.StatusChangedEffect{Entity: "escalation", EntityID: "ESC-001", From: "in_progress", To: "failed"},
	})
	if err == nil {
		t.Fatal("expected the publish error")
	}
}

func TestEffectExecutor_NilPublisherDropsEvents(t *testing.T) {
	executor := NewEffectExecutor(nil, nil, nil)
	err := executor.Execute(context.Background(), []effects.Effect{
		effects.ContactRequestedEffect{CaseID: "ESC-001", Level: 1, AttemptNumber: 1, Channel: "call"},
	})
	if err != nil {
		t.Errorf("expected events to be dropped silently, got %v", err)
	}
}

func TestDispatch_SwallowsErrors(t *testing.T) {
	executor := NewEffectExecutor(&mockPublisher{err: errors.New("timeout")}, nil, nil)
	// must not panic nor surface the error
	dispatch(context.Background(), executor, executor.logger,
		statusChanged("unavailability", "UNAV-001", "pending", "approved", "USR-CH1", "", time.Now()))
	dispatch(context.Background(), nil, executor.logger, effects.NoEffect{})
}
