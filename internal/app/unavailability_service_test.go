package app

import (
	"context"
	"testing"
	"time"

	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/ports/primary"
)

type unavFixture struct {
	service  *UnavailabilityServiceImpl
	unavs    *mockUnavailabilityRepository
	rosters  *mockRosterRepository
	log      *mockAuditLog
	executor *recordingExecutor
}

func newTestUnavailabilityService() unavFixture {
	f := unavFixture{
		unavs:    newMockUnavailabilityRepository(),
		rosters:  newMockRosterRepository(),
		log:      &mockAuditLog{},
		executor: &recordingExecutor{},
	}
	f.service = NewUnavailabilityService(f.unavs, f.rosters, testDirectory(), f.log, f.executor, nil)
	f.service.now = func() time.Time { return time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC) }
	return f
}

func collaboratorActor(id string) identity.Actor {
	return identity.Actor{ID: id, Role: identity.RoleCollaborator, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1"}
}

func TestUnavailabilityService_Submit(t *testing.T) {
	tests := []struct {
		name    string
		req     primary.SubmitUnavailabilityRequest
		want    fault.Kind
		wantUsr string
	}{
		{
			name:    "self declaration",
			req:     primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-001"), Start: day("2025-01-10"), End: day("2025-01-12"), Reason: "conge"},
			wantUsr: "USR-001",
		},
		{
			name:    "service chief declares for a collaborator",
			req:     primary.SubmitUnavailabilityRequest{Actor: serviceBoss, UserID: "USR-002", Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "formation"},
			wantUsr: "USR-002",
		},
		{
			name: "colleague cannot declare",
			req:  primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-001"), UserID: "USR-002", Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "conge"},
			want: fault.KindForbidden,
		},
		{
			name: "other without description",
			req:  primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-001"), Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "autre"},
			want: fault.KindValidation,
		},
		{
			name: "end before start",
			req:  primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-001"), Start: day("2025-01-10"), End: day("2025-01-09"), Reason: "conge"},
			want: fault.KindValidation,
		},
		{
			name: "unknown user",
			req:  primary.SubmitUnavailabilityRequest{Actor: adminActor, UserID: "USR-404", Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "conge"},
			want: fault.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestUnavailabilityService()
			u, err := f.service.Submit(context.Background(), tt.req)
			if tt.want != "" {
				if !fault.Is(err, tt.want) {
					t.Fatalf("expected %s, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if u.UserID != tt.wantUsr || u.Status != unavailability.StatusPending {
				t.Errorf("unexpected request: user=%s status=%s", u.UserID, u.Status)
			}
			if u.CreatedBy != tt.req.Actor.ID {
				t.Errorf("expected created by %s, got %s", tt.req.Actor.ID, u.CreatedBy)
			}
		})
	}
}

func TestUnavailabilityService_ApproveScansImpact(t *testing.T) {
	f := newTestUnavailabilityService()
	ctx := context.Background()

	f.rosters.put(publishedRoster("ROSTER-001", serviceScope, "2025-01-01", "2025-01-31", map[string]string{
		"2025-01-04": "USR-001",
		"2025-01-11": "USR-001",
		"2025-01-12": "USR-002",
	}))
	draft, _ := roster.New("ROSTER-002", serviceScope, day("2025-01-01"), day("2025-01-31"), "ADM-001", day("2025-01-01"))
	_ = draft.AddAssignment(roster.Assignment{Date: day("2025-01-04"), UserID: "USR-001"}, day("2025-01-01"))
	f.rosters.put(draft)

	u, err := f.service.Submit(ctx, primary.SubmitUnavailabilityRequest{
		Actor: collaboratorActor("USR-001"), Start: day("2025-01-03"), End: day("2025-01-05"), Reason: "maladie",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.service.Approve(ctx, primary.DecisionRequest{Actor: sectorChief, ID: u.ID}); !fault.Is(err, fault.KindForbidden) {
		t.Errorf("sector chief must not approve a collaborator, got %v", err)
	}

	got, err := f.service.Approve(ctx, primary.DecisionRequest{Actor: serviceBoss, ID: u.ID, Comment: "ok"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != unavailability.StatusApproved || got.Approval.Level != unavailability.LevelServiceChief {
		t.Errorf("unexpected decision: %s %s", got.Status, got.Approval.Level)
	}
	if !got.Impact.RecalcNeeded {
		t.Error("expected recalcNeeded after approval")
	}
	if len(got.Impact.Affected) != 1 || got.Impact.Affected[0].RosterID != "ROSTER-001" {
		t.Fatalf("expected only the published roster affected, got %+v", got.Impact.Affected)
	}
	if n := len(got.Impact.Affected[0].Dates); n != 1 {
		t.Errorf("expected 1 affected date, got %d", n)
	}

	// roster assignments are left untouched
	r, _ := f.rosters.GetByID(ctx, "ROSTER-001")
	if holder, _ := r.OnDuty(day("2025-01-04")); holder != "USR-001" {
		t.Errorf("approval must not reassign, holder is %s", holder)
	}
	if n := len(f.executor.ofType("status_changed")); n != 1 {
		t.Errorf("expected 1 status_changed effect, got %d", n)
	}
}

func TestUnavailabilityService_RefuseAndCancel(t *testing.T) {
	f := newTestUnavailabilityService()
	ctx := context.Background()
	eng := identity.Actor{ID: "ENG-001", Role: identity.RoleEngineer, Site: "SITE-A", Sector: "SEC-1"}

	u, _ := f.service.Submit(ctx, primary.SubmitUnavailabilityRequest{Actor: eng, Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "conge"})
	if _, err := f.service.Refuse(ctx, primary.DecisionRequest{Actor: sectorChief, ID: u.ID}); !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected ValidationError without reason, got %v", err)
	}
	refused, err := f.service.Refuse(ctx, primary.DecisionRequest{Actor: sectorChief, ID: u.ID, Comment: "peak period"})
	if err != nil {
		t.Fatalf("refuse: %v", err)
	}
	if refused.Status != unavailability.StatusRefused || refused.Approval.RefusalReason != "peak period" {
		t.Errorf("unexpected refusal: %+v", refused.Approval)
	}
	if _, err := f.service.Cancel(ctx, primary.DecisionRequest{Actor: eng, ID: u.ID}); !fault.Is(err, fault.KindValidation) {
		t.Errorf("refused requests cannot be cancelled, got %v", err)
	}

	v, _ := f.service.Submit(ctx, primary.SubmitUnavailabilityRequest{Actor: eng, Start: day("2025-02-10"), End: day("2025-02-11"), Reason: "mission"})
	if _, err := f.service.Cancel(ctx, primary.DecisionRequest{Actor: sectorChief, ID: v.ID}); !fault.Is(err, fault.KindForbidden) {
		t.Errorf("only owner or admin may cancel, got %v", err)
	}
	cancelled, err := f.service.Cancel(ctx, primary.DecisionRequest{Actor: eng, ID: v.ID, Comment: "trip postponed"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Cancellation.By != eng.ID || cancelled.Cancellation.Reason != "trip postponed" {
		t.Errorf("unexpected cancellation: %+v", cancelled.Cancellation)
	}
}

func TestUnavailabilityService_RecomputeImpact(t *testing.T) {
	f := newTestUnavailabilityService()
	ctx := context.Background()

	r := publishedRoster("ROSTER-001", serviceScope, "2025-01-01", "2025-01-31", map[string]string{"2025-01-04": "USR-001"})
	f.rosters.put(r)
	u, _ := f.service.Submit(ctx, primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-001"), Start: day("2025-01-04"), End: day("2025-01-04"), Reason: "conge"})

	if _, err := f.service.RecomputeImpact(ctx, u.ID); !fault.Is(err, fault.KindValidation) {
		t.Errorf("pending requests have no impact, got %v", err)
	}
	if _, err := f.service.Approve(ctx, primary.DecisionRequest{Actor: adminActor, ID: u.ID}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// the slot is handed over outside the workflow
	r.Assignments[0].Replacement = "USR-002"
	r.Assignments[0].Status = roster.AssignmentReplaced

	got, err := f.service.RecomputeImpact(ctx, u.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Impact.RecalcNeeded || !got.Impact.ReplacementFound || len(got.Impact.Affected) != 0 {
		t.Errorf("expected impact cleared with replacement found, got %+v", got.Impact)
	}
}

func TestUnavailabilityService_List(t *testing.T) {
	f := newTestUnavailabilityService()
	ctx := context.Background()
	_, _ = f.service.Submit(ctx, primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-001"), Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "conge"})
	_, _ = f.service.Submit(ctx, primary.SubmitUnavailabilityRequest{Actor: collaboratorActor("USR-002"), Start: day("2025-01-10"), End: day("2025-01-10"), Reason: "conge"})

	items, err := f.service.List(ctx, primary.UnavailabilityFilters{UserID: "USR-002", Status: "pending"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].UserID != "USR-002" {
		t.Errorf("unexpected list: %v", items)
	}
}
