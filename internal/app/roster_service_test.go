package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/ports/primary"
)

type rosterFixture struct {
	service  *RosterServiceImpl
	rosters  *mockRosterRepository
	unavs    *mockUnavailabilityRepository
	dir      *mockDirectory
	log      *mockAuditLog
	executor *recordingExecutor
}

func newTestRosterService(t *testing.T) rosterFixture {
	t.Helper()
	holidays, err := calendar.DefaultHolidays()
	if err != nil {
		t.Fatalf("default holidays: %v", err)
	}
	f := rosterFixture{
		rosters:  newMockRosterRepository(),
		unavs:    newMockUnavailabilityRepository(),
		dir:      testDirectory(),
		log:      &mockAuditLog{},
		executor: &recordingExecutor{},
	}
	f.service = NewRosterService(f.rosters, f.unavs, f.dir, f.log, f.executor, RosterServiceOptions{Holidays: holidays})
	f.service.now = func() time.Time { return time.Date(2024, 12, 15, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f rosterFixture) approvedUnavailability(t *testing.T, userID, start, end string) {
	t.Helper()
	id, _ := f.unavs.GetNextID(context.Background())
	u, err := unavailability.Submit(id, unavailability.SubmitRequest{
		UserID: userID, Start: day(start), End: day(end), Reason: unavailability.ReasonLeave,
	}, day(start))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := u.Approve("ADM-001", unavailability.LevelAutomatic, "", day(start)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_ = f.unavs.Create(context.Background(), u)
}

func assignees(r *roster.Roster) []string {
	var out []string
	for _, a := range r.Assignments {
		out = append(out, a.EffectiveUser())
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRosterService_GenerateRoster_NewYearWeek(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()

	resp, err := f.service.GenerateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss,
		Scope: serviceScope,
		Start: day("2024-12-30"),
		End:   day("2025-01-05"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	r := resp.Roster
	if r.ID != "ROSTER-001" {
		t.Errorf("expected ID ROSTER-001, got %q", r.ID)
	}
	if r.Status != roster.StatusDraft {
		t.Errorf("expected draft, got %s", r.Status)
	}
	want := []string{"USR-001", "USR-002", "USR-001"}
	if got := assignees(r); !equalStrings(got, want) {
		t.Errorf("assignees = %v, want %v", got, want)
	}
	if r.Assignments[0].Coverage != calendar.CoverageHoliday {
		t.Errorf("expected Jan 1 tagged holiday, got %s", r.Assignments[0].Coverage)
	}
	if !equalStrings(resp.Candidates, []string{"USR-001", "USR-002"}) {
		t.Errorf("candidates = %v", resp.Candidates)
	}
	if r.Meta == nil || r.Meta.Stats.HolidaysCovered != 1 || r.Meta.Stats.WeekendsCovered != 2 {
		t.Errorf("unexpected generation meta: %+v", r.Meta)
	}
	if len(f.log.entries) != 1 || f.log.entries[0] != "create roster ROSTER-001" {
		t.Errorf("expected a create audit entry, got %v", f.log.entries)
	}
}

func TestRosterService_GenerateRoster_IncludesChiefWhenConfigured(t *testing.T) {
	f := newTestRosterService(t)
	cfg := f.dir.services["SRV-1"]
	cfg.IncludeChiefInRotation = true
	f.dir.services["SRV-1"] = cfg

	resp, err := f.service.GenerateRoster(context.Background(), primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2024-12-30"), End: day("2025-01-05"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !equalStrings(resp.Candidates, []string{"USR-CH1", "USR-001", "USR-002"}) {
		t.Errorf("candidates = %v", resp.Candidates)
	}
	if got := assignees(resp.Roster); !equalStrings(got, []string{"USR-CH1", "USR-001", "USR-002"}) {
		t.Errorf("assignees = %v", got)
	}
}

func TestRosterService_GenerateRoster_RespectsApprovedUnavailability(t *testing.T) {
	f := newTestRosterService(t)
	f.approvedUnavailability(t, "USR-001", "2025-01-01", "2025-01-01")

	// a pending request does not block assignment
	pending, _ := unavailability.Submit("UNAV-900", unavailability.SubmitRequest{
		UserID: "USR-002", Start: day("2025-01-04"), End: day("2025-01-05"), Reason: unavailability.ReasonLeave,
	}, day("2024-12-01"))
	_ = f.unavs.Create(context.Background(), pending)

	resp, err := f.service.GenerateRoster(context.Background(), primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2024-12-30"), End: day("2025-01-05"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"USR-002", "USR-001", "USR-001"}
	if got := assignees(resp.Roster); !equalStrings(got, want) {
		t.Errorf("assignees = %v, want %v", got, want)
	}
}

func TestRosterService_GenerateRoster_HistoricalLoad(t *testing.T) {
	f := newTestRosterService(t)
	past := publishedRoster("ROSTER-500", serviceScope, "2024-12-01", "2024-12-08", map[string]string{
		"2024-12-01": "USR-001",
		"2024-12-07": "USR-001",
	})
	f.rosters.put(past)

	resp, err := f.service.GenerateRoster(context.Background(), primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2024-12-30"), End: day("2025-01-05"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"USR-002", "USR-002", "USR-001"}
	if got := assignees(resp.Roster); !equalStrings(got, want) {
		t.Errorf("assignees = %v, want %v", got, want)
	}
}

func TestRosterService_GenerateRoster_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  primary.CreateRosterRequest
		prep func(f rosterFixture)
		want fault.Kind
	}{
		{
			name: "outsider is forbidden",
			req:  primary.CreateRosterRequest{Actor: outsider, Scope: serviceScope, Start: day("2024-12-30"), End: day("2025-01-05")},
			want: fault.KindForbidden,
		},
		{
			name: "no engineers in sector",
			req:  primary.CreateRosterRequest{Actor: sectorChief, Scope: sectorScope, Start: day("2024-12-30"), End: day("2025-01-05")},
			prep: func(f rosterFixture) {
				delete(f.dir.users, "ENG-001")
				delete(f.dir.users, "ENG-002")
			},
			want: fault.KindNoEligiblePersonnel,
		},
		{
			name: "weekdays only",
			req:  primary.CreateRosterRequest{Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-06"), End: day("2025-01-07")},
			want: fault.KindEmptyCoverageWindow,
		},
		{
			name: "end not after start",
			req:  primary.CreateRosterRequest{Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-06"), End: day("2025-01-06")},
			want: fault.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestRosterService(t)
			if tt.prep != nil {
				tt.prep(f)
			}
			_, err := f.service.GenerateRoster(context.Background(), tt.req)
			if !fault.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
			if len(f.rosters.rosters) != 0 {
				t.Errorf("expected nothing stored, got %d roster(s)", len(f.rosters.rosters))
			}
		})
	}
}

func TestRosterService_GenerateBatch(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()

	out, err := f.service.GenerateBatch(ctx, []primary.CreateRosterRequest{
		{Actor: serviceBoss, Scope: serviceScope, Start: day("2024-12-30"), End: day("2025-01-05")},
		{Actor: sectorChief, Scope: sectorScope, Start: day("2024-12-30"), End: day("2025-01-05")},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 2 || out[0] == nil || out[1] == nil {
		t.Fatalf("expected two results, got %v", out)
	}
	if out[0].Roster.ID == out[1].Roster.ID {
		t.Errorf("expected distinct IDs, both %s", out[0].Roster.ID)
	}
	if out[1].Roster.Scope.Type != identity.ScopeSector {
		t.Errorf("results must keep request order")
	}

	_, err = f.service.GenerateBatch(ctx, []primary.CreateRosterRequest{
		{Actor: serviceBoss, Scope: serviceScope, Start: day("2025-02-01"), End: day("2025-02-28")},
		{Actor: serviceBoss, Scope: serviceScope, Start: day("2025-03-01"), End: day("2025-03-31")},
	})
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected ValidationError for duplicate scope, got %v", err)
	}
}

func TestRosterService_Lifecycle(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()

	r, err := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	add := primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), UserID: "USR-001"}
	if err := f.service.AddAssignment(ctx, add); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.service.AddAssignment(ctx, add); !fault.Is(err, fault.KindDuplicateAssignment) {
		t.Errorf("expected DuplicateAssignment, got %v", err)
	}

	if err := f.service.Submit(ctx, serviceBoss, r.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// draft only from here on
	late := primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-05"), UserID: "USR-002"}
	if err := f.service.AddAssignment(ctx, late); !fault.Is(err, fault.KindRosterNotEditable) {
		t.Errorf("expected RosterNotEditable, got %v", err)
	}
	if err := f.service.Approve(ctx, primary.TransitionRequest{Actor: serviceBoss, RosterID: r.ID}); !fault.Is(err, fault.KindForbidden) {
		t.Errorf("service chief must not validate, got %v", err)
	}
	if err := f.service.Approve(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.service.Publish(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, _ := f.service.GetRoster(ctx, r.ID)
	if got.Status != roster.StatusPublished {
		t.Errorf("expected published, got %s", got.Status)
	}
	if got.Validation.ApprovedBy != sectorChief.ID || got.Validation.PublishedAt == nil {
		t.Errorf("validation not stamped: %+v", got.Validation)
	}
	if n := len(f.executor.ofType("status_changed")); n != 3 {
		t.Errorf("expected 3 status_changed effects, got %d", n)
	}
	if err := f.service.DeleteRoster(ctx, adminActor, r.ID); !fault.Is(err, fault.KindRosterNotEditable) {
		t.Errorf("expected RosterNotEditable on delete, got %v", err)
	}

	if err := f.service.Archive(ctx, sectorChief, r.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got.Status != roster.StatusArchived || got.ArchivedAt == nil {
		t.Errorf("expected archived, got %s", got.Status)
	}
}

func TestRosterService_RejectRequiresReason(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()
	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	_ = f.service.Submit(ctx, serviceBoss, r.ID)

	if err := f.service.Reject(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID}); !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if err := f.service.Reject(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID, Reason: "uneven"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if r.Status != roster.StatusDraft || r.Validation.RejectionReason != "uneven" {
		t.Errorf("expected draft with reason, got %s %q", r.Status, r.Validation.RejectionReason)
	}
}

func TestRosterService_ApproveBlockedByConflicts(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()

	other := publishedRoster("ROSTER-900", identity.Scope{Type: identity.ScopeService, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-2"},
		"2025-01-01", "2025-01-31", map[string]string{"2025-01-04": "USR-001"})
	f.rosters.put(other)

	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	_ = f.service.AddAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), UserID: "USR-001"})
	_ = f.service.Submit(ctx, serviceBoss, r.ID)

	err := f.service.Approve(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID})
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Kind != fault.KindConflictsDetected {
		t.Fatalf("expected ConflictsDetected, got %v", err)
	}
	if len(fe.Conflicts) != 1 || fe.Conflicts[0].ConflictingRosterID != "ROSTER-900" || fe.Conflicts[0].UserID != "USR-001" {
		t.Errorf("unexpected conflicts: %+v", fe.Conflicts)
	}
	if r.Status != roster.StatusPendingValidation {
		t.Errorf("blocked approve must not change status, got %s", r.Status)
	}

	if err := f.service.Approve(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID, Override: true}); err != nil {
		t.Fatalf("override approve: %v", err)
	}
	if r.Status != roster.StatusValidated {
		t.Errorf("expected validated, got %s", r.Status)
	}
}

func TestRosterService_PublishRerunsDetection(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()

	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	_ = f.service.AddAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-11"), UserID: "USR-002"})
	_ = f.service.Submit(ctx, serviceBoss, r.ID)
	if err := f.service.Approve(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// another roster gets published between approval and publication
	f.rosters.put(publishedRoster("ROSTER-901", identity.Scope{Type: identity.ScopeService, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-2"},
		"2025-01-10", "2025-01-12", map[string]string{"2025-01-11": "USR-002"}))

	err := f.service.Publish(ctx, primary.TransitionRequest{Actor: sectorChief, RosterID: r.ID})
	if !fault.Is(err, fault.KindConflictsDetected) {
		t.Fatalf("expected ConflictsDetected, got %v", err)
	}
	if r.Status != roster.StatusValidated {
		t.Errorf("expected still validated, got %s", r.Status)
	}
}

func TestRosterService_DetectConflictsIsReadOnly(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()
	f.rosters.put(publishedRoster("ROSTER-900", sectorScope, "2025-01-01", "2025-01-31", map[string]string{"2025-01-04": "USR-001"}))

	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	_ = f.service.AddAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), UserID: "USR-001"})
	version := r.Version

	first, err := f.service.DetectConflicts(ctx, r.ID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	second, _ := f.service.DetectConflicts(ctx, r.ID)
	if len(first) != 1 || len(second) != 1 || !first[0].Date.Equal(second[0].Date) {
		t.Errorf("detection must be idempotent: %v vs %v", first, second)
	}
	if r.Version != version {
		t.Errorf("detection must not write, version %d -> %d", version, r.Version)
	}
}

func TestRosterService_ResolveConflicts(t *testing.T) {
	tests := []struct {
		name           string
		prep           func(t *testing.T, f rosterFixture)
		otherCreated   time.Time
		wantResolved   bool
		wantHolderJan4 string
	}{
		{
			name:           "substitutes least loaded available candidate",
			otherCreated:   time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC),
			wantResolved:   true,
			wantHolderJan4: "USR-002",
		},
		{
			name: "no substitute available",
			prep: func(t *testing.T, f rosterFixture) {
				f.approvedUnavailability(t, "USR-002", "2025-01-04", "2025-01-04")
			},
			otherCreated:   time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC),
			wantResolved:   false,
			wantHolderJan4: "USR-001",
		},
		{
			name:           "roster created later keeps the conflict",
			otherCreated:   time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC),
			wantResolved:   false,
			wantHolderJan4: "USR-001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestRosterService(t)
			ctx := context.Background()
			other := publishedRoster("ROSTER-900", sectorScope, "2025-01-01", "2025-01-31", map[string]string{"2025-01-04": "USR-001"})
			other.CreatedAt = tt.otherCreated
			f.rosters.put(other)
			if tt.prep != nil {
				tt.prep(t, f)
			}

			r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
				Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
			})
			_ = f.service.AddAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), UserID: "USR-001"})

			res, err := f.service.ResolveConflicts(ctx, serviceBoss, r.ID)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if res.Resolved != tt.wantResolved {
				t.Errorf("resolved = %v, want %v (unresolved %v)", res.Resolved, tt.wantResolved, res.Unresolved)
			}
			if holder, _ := r.OnDuty(day("2025-01-04")); holder != tt.wantHolderJan4 {
				t.Errorf("holder on Jan 4 = %q, want %q", holder, tt.wantHolderJan4)
			}
		})
	}
}

func TestRosterService_ResolveConflicts_NoConflicts(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()
	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})

	res, err := f.service.ResolveConflicts(ctx, serviceBoss, r.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Resolved || len(res.Unresolved) != 0 {
		t.Errorf("expected {true, []}, got %+v", res)
	}
}

func TestRosterService_ReplaceAndMarkAbsent(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()
	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	_ = f.service.AddAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), UserID: "USR-001"})
	_ = f.service.AddAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-05"), UserID: "USR-002"})

	if err := f.service.ReplaceAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), Replacement: "USR-404"}); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected NotFound for unknown replacement, got %v", err)
	}
	if err := f.service.ReplaceAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-04"), Replacement: "USR-002"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := f.service.MarkAbsent(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-05"), Comment: "sick"}); err != nil {
		t.Fatalf("mark absent: %v", err)
	}
	if err := f.service.ConfirmAssignment(ctx, primary.AssignmentRequest{Actor: serviceBoss, RosterID: r.ID, Date: day("2025-01-11")}); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected NotFound for empty slot, got %v", err)
	}

	if got := assignees(r); !equalStrings(got, []string{"USR-002", ""}) {
		t.Errorf("effective users = %v", got)
	}
}

func TestRosterService_WhoIsOnDuty(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()
	f.rosters.put(publishedRoster("ROSTER-900", serviceScope, "2025-01-01", "2025-01-31", map[string]string{"2025-01-04": "USR-002"}))

	got, err := f.service.WhoIsOnDuty(ctx, primary.OnDutyRequest{Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1", At: time.Date(2025, 1, 4, 22, 30, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.UserID != "USR-002" || got.RosterID != "ROSTER-900" {
		t.Errorf("unexpected on-duty answer: %+v", got)
	}

	_, err = f.service.WhoIsOnDuty(ctx, primary.OnDutyRequest{Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1", At: day("2025-01-05")})
	if !fault.Is(err, fault.KindNoActiveRoster) {
		t.Errorf("expected NoActiveRoster, got %v", err)
	}
	_, err = f.service.WhoIsOnDuty(ctx, primary.OnDutyRequest{Site: "SITE-A", Sector: "SEC-1", At: day("2025-01-04")})
	if !fault.Is(err, fault.KindNoActiveRoster) {
		t.Errorf("sector lookup must ignore service rosters, got %v", err)
	}
}

func TestRosterService_DeleteDraft(t *testing.T) {
	f := newTestRosterService(t)
	ctx := context.Background()
	r, _ := f.service.CreateRoster(ctx, primary.CreateRosterRequest{
		Actor: serviceBoss, Scope: serviceScope, Start: day("2025-01-01"), End: day("2025-01-31"),
	})
	if err := f.service.DeleteRoster(ctx, outsider, r.ID); !fault.Is(err, fault.KindForbidden) {
		t.Errorf("expected Forbidden, got %v", err)
	}
	if err := f.service.DeleteRoster(ctx, serviceBoss, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.GetRoster(ctx, r.ID); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestRosterService_CoverageDates(t *testing.T) {
	f := newTestRosterService(t)
	dates, err := f.service.CoverageDates(context.Background(), day("2024-12-30"), day("2025-01-05"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(dates) != 3 || dates[0].HolidayName == "" {
		t.Errorf("unexpected coverage: %+v", dates)
	}
	if _, err := f.service.CoverageDates(context.Background(), day("2025-01-05"), day("2025-01-01")); !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
