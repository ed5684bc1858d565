package escalation

import (
	"strings"
	"testing"
	"time"

	"github.com/example/garde/internal/core/effects"
	"github.com/example/garde/internal/core/fault"
)

var t0 = time.Date(2025, 3, 8, 22, 0, 0, 0, time.UTC)

func openCase(t *testing.T) *Case {
	t.Helper()
	c, err := Open("ESC-001", OpenRequest{
		Incident:  Incident{Description: "pump failure", Type: "technical", Time: t0},
		Site:      "SITE-001",
		Sector:    "SEC-001",
		Declarant: Declarant{Name: "Night operator", Contact: "+212600000000"},
		ActorID:   "USR-500",
	}, t0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c
}

func TestOpen(t *testing.T) {
	c := openCase(t)
	if c.Status != StatusInProgress || len(c.Levels) != 0 {
		t.Errorf("Open() = status %s, %d levels", c.Status, len(c.Levels))
	}
	if len(c.History) != 1 || c.History[0].Action != ActionCreated {
		t.Errorf("history = %+v", c.History)
	}
	if c.Config != DefaultConfig() || c.Incident.Priority != "normal" {
		t.Errorf("defaults not applied: %+v", c)
	}

	bad := Config{TimeoutMinutes: [MaxLevel]int{15, 0, 30}, MaxAttemptsPerLevel: 3}
	tests := []struct {
		name string
		req  OpenRequest
	}{
		{"missing description", OpenRequest{Site: "SITE-001", Sector: "SEC-001"}},
		{"missing sector", OpenRequest{Incident: Incident{Description: "x"}, Site: "SITE-001"}},
		{"bad config", OpenRequest{Incident: Incident{Description: "x"}, Site: "SITE-001", Sector: "SEC-001", Config: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open("ESC-002", tt.req, t0); !fault.Is(err, fault.KindValidation) {
				t.Errorf("Open() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEscalationOrdering(t *testing.T) {
	c := openCase(t)

	if err := c.EscalateToNext("USR-002", "system", t0); !fault.Is(err, fault.KindValidation) {
		t.Errorf("escalate before start error = %v, want ValidationError", err)
	}
	if err := c.Start("", "system", t0); !fault.Is(err, fault.KindNoActiveRoster) {
		t.Errorf("start without responder error = %v, want NoActiveRoster", err)
	}
	if err := c.Start("USR-001", "system", t0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start("USR-001", "system", t0); err == nil {
		t.Error("second Start() should fail")
	}

	for want := 2; want <= MaxLevel; want++ {
		next, err := c.NextLevel()
		if err != nil || next != want {
			t.Fatalf("NextLevel() = %d, %v; want %d", next, err, want)
		}
		if err := c.EscalateToNext("USR-00"+string(rune('0'+want)), "system", t0.Add(time.Duration(want)*20*time.Minute)); err != nil {
			t.Fatalf("EscalateToNext() to %d error = %v", want, err)
		}
		if c.CurrentLevel().Number != want {
			t.Errorf("current level = %d, want %d", c.CurrentLevel().Number, want)
		}
	}

	if err := c.EscalateToNext("USR-009", "system", t0.Add(2*time.Hour)); !fault.Is(err, fault.KindMaxLevelReached) {
		t.Errorf("escalate past 3 error = %v, want MaxLevelReached", err)
	}
	for i, l := range c.Levels {
		if l.Number != i+1 {
			t.Errorf("levels[%d].Number = %d, skipped a level", i, l.Number)
		}
	}
	if c.Levels[0].ResponseType != ResponseTimeout || c.Levels[1].ResponseType != ResponseTimeout {
		t.Errorf("superseded levels not closed as timeout: %+v", c.Levels)
	}

	var actions []string
	for _, h := range c.History {
		actions = append(actions, h.Action)
	}
	wantActions := []string{ActionCreated, "escalade_niveau1", ActionTimeout, "escalade_niveau2", ActionTimeout, "escalade_niveau3"}
	if len(actions) != len(wantActions) {
		t.Fatalf("history actions = %v, want %v", actions, wantActions)
	}
	for i := range wantActions {
		if actions[i] != wantActions[i] {
			t.Errorf("history[%d] = %s, want %s", i, actions[i], wantActions[i])
		}
	}
}

func TestTimeoutThenEscalate(t *testing.T) {
	c := openCase(t)
	_ = c.Start("USR-001", "system", t0)

	if c.IsInTimeout(t0.Add(15 * time.Minute)) {
		t.Error("exactly at timeout should not count as timed out")
	}
	if !c.IsInTimeout(t0.Add(16 * time.Minute)) {
		t.Fatal("16 minutes after contact with a 15 minute timeout should be in timeout")
	}

	if err := c.EscalateToNext("USR-002", "system", t0.Add(16*time.Minute)); err != nil {
		t.Fatalf("EscalateToNext() error = %v", err)
	}
	if c.CurrentLevel().Number != 2 || c.CurrentLevel().ResponderID != "USR-002" {
		t.Errorf("current level = %+v", c.CurrentLevel())
	}
	if c.IsInTimeout(t0.Add(30 * time.Minute)) {
		t.Error("fresh level 2 should not be in timeout after 14 minutes")
	}

	_ = c.RecordResponse(ResponseRequest{Level: 2, Type: ResponseDeclined}, t0.Add(20*time.Minute))
	if c.IsInTimeout(t0.Add(5 * time.Hour)) {
		t.Error("responded level is never in timeout")
	}
}

func TestRecordContactAttempt(t *testing.T) {
	c := openCase(t)
	_ = c.Start("USR-001", "system", t0)
	_ = c.TakeEffects()

	a, err := c.RecordContactAttempt(1, ChannelCall, "system", t0)
	if err != nil {
		t.Fatalf("RecordContactAttempt() error = %v", err)
	}
	if a.Number != 1 || a.DeliveryStatus != DeliveryPending {
		t.Errorf("attempt = %+v", a)
	}

	if _, err := c.RecordContactAttempt(1, ChannelSMS, "system", t0.Add(4*time.Minute)); !fault.Is(err, fault.KindContactRateLimit) {
		t.Errorf("attempt too soon error = %v, want ContactRateLimitExceeded", err)
	}
	if _, err := c.RecordContactAttempt(1, ChannelSMS, "system", t0.Add(5*time.Minute)); err != nil {
		t.Errorf("attempt at exact interval error = %v", err)
	}
	if _, err := c.RecordContactAttempt(1, ChannelSMS, "system", t0.Add(10*time.Minute)); err != nil {
		t.Errorf("third attempt error = %v", err)
	}
	if _, err := c.RecordContactAttempt(1, ChannelSMS, "system", t0.Add(20*time.Minute)); !fault.Is(err, fault.KindContactRateLimit) {
		t.Errorf("fourth attempt error = %v, want ContactRateLimitExceeded", err)
	}
	if _, err := c.RecordContactAttempt(2, ChannelSMS, "system", t0); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("attempt on unopened level error = %v, want NotFound", err)
	}
	if _, err := c.RecordContactAttempt(1, "pigeon", "system", t0.Add(30*time.Minute)); !fault.Is(err, fault.KindValidation) {
		t.Errorf("unknown channel error = %v, want ValidationError", err)
	}

	effs := c.TakeEffects()
	if len(effs) != 3 {
		t.Fatalf("effects = %d, want 3 contact requests", len(effs))
	}
	req, ok := effs[0].(effects.ContactRequestedEffect)
	if !ok || req.RecipientID != "USR-001" || req.Channel != "call" || req.Level != 1 {
		t.Errorf("effect[0] = %+v", effs[0])
	}
	if c.Metrics.TotalAttempts != 3 {
		t.Errorf("TotalAttempts = %d, want 3", c.Metrics.TotalAttempts)
	}

	if err := c.UpdateDeliveryStatus(1, 2, DeliveryDelivered, t0.Add(6*time.Minute)); err != nil {
		t.Fatalf("UpdateDeliveryStatus() error = %v", err)
	}
	if c.Levels[0].Attempts[1].DeliveryStatus != DeliveryDelivered {
		t.Errorf("delivery status not applied")
	}
	if err := c.UpdateDeliveryStatus(1, 7, DeliverySent, t0); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("unknown attempt error = %v, want NotFound", err)
	}
	if err := c.UpdateDeliveryStatus(1, 1, "read", t0); !fault.Is(err, fault.KindValidation) {
		t.Errorf("unknown delivery status error = %v, want ValidationError", err)
	}
}

func TestRecordResponse_ResponseTime(t *testing.T) {
	tests := []struct {
		name  string
		after time.Duration
		want  int
	}{
		{"immediate", 0, 0},
		{"seven minutes", 7 * time.Minute, 7},
		{"rounds half up", 2*time.Minute + 30*time.Second, 3},
		{"rounds down", 2*time.Minute + 29*time.Second, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := openCase(t)
			_ = c.Start("USR-001", "system", t0)
			if err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseDeclined}, t0.Add(tt.after)); err != nil {
				t.Fatalf("RecordResponse() error = %v", err)
			}
			got := c.Levels[0].ResponseTimeMinutes
			if got == nil || *got != tt.want {
				t.Errorf("ResponseTimeMinutes = %v, want %d", got, tt.want)
			}
			if c.Status != StatusInProgress {
				t.Errorf("declined response changed status to %s", c.Status)
			}
		})
	}
}

func TestRecordResponse_AcceptedResolves(t *testing.T) {
	c := openCase(t)
	_ = c.Start("USR-001", "system", t0.Add(2*time.Minute))

	err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseAccepted, Comment: "on my way", Method: MethodOnSite}, t0.Add(40*time.Minute))
	if err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}
	if c.Status != StatusResolved || c.Resolution == nil {
		t.Fatalf("status = %s, resolution = %+v", c.Status, c.Resolution)
	}
	if c.Resolution.ResolverID != "USR-001" || c.Resolution.Minutes != 40 || c.Resolution.Method != MethodOnSite {
		t.Errorf("resolution = %+v", c.Resolution)
	}
	if c.Metrics.TotalMinutes == nil || *c.Metrics.TotalMinutes != 40 || c.Metrics.ResponseRate != 1 {
		t.Errorf("metrics = %+v", c.Metrics)
	}

	effs := c.TakeEffects()
	if len(effs) != 1 {
		t.Fatalf("effects = %d, want 1 status change", len(effs))
	}
	sc, ok := effs[0].(effects.StatusChangedEffect)
	if !ok || sc.From != string(StatusInProgress) || sc.To != string(StatusResolved) {
		t.Errorf("effect = %+v", effs[0])
	}

	if err := c.Cancel("USR-900", "late", t0.Add(time.Hour)); !fault.Is(err, fault.KindValidation) {
		t.Errorf("cancel resolved case error = %v, want ValidationError", err)
	}
}

func TestRecordResponse_Validation(t *testing.T) {
	c := openCase(t)
	_ = c.Start("USR-001", "system", t0)

	if err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseForwarded}, t0); !fault.Is(err, fault.KindValidation) {
		t.Errorf("forward without target error = %v, want ValidationError", err)
	}
	if err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseTimeout}, t0); !fault.Is(err, fault.KindValidation) {
		t.Errorf("timeout as response error = %v, want ValidationError", err)
	}
	if err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseForwarded, ForwardedTo: "USR-007"}, t0); err != nil {
		t.Fatalf("RecordResponse(forwarded) error = %v", err)
	}
	if c.Levels[0].ForwardedTo != "USR-007" || c.Status != StatusInProgress {
		t.Errorf("forwarded level = %+v, status %s", c.Levels[0], c.Status)
	}
	if err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseAccepted}, t0); !fault.Is(err, fault.KindValidation) {
		t.Errorf("second response error = %v, want ValidationError", err)
	}
}

func TestRecordResponse_SupersededLevel(t *testing.T) {
	c := openCase(t)
	_ = c.Start("USR-001", "system", t0)
	if err := c.EscalateToNext("USR-002", "system", t0.Add(16*time.Minute)); err != nil {
		t.Fatalf("EscalateToNext() error = %v", err)
	}

	err := c.RecordResponse(ResponseRequest{Level: 1, Type: ResponseAccepted}, t0.Add(20*time.Minute))
	if !fault.Is(err, fault.KindValidation) {
		t.Fatalf("response on timed-out level error = %v, want ValidationError", err)
	}
	if c.Status != StatusInProgress || c.Levels[0].ResponseType != ResponseTimeout {
		t.Errorf("late response changed the case: %s, %+v", c.Status, c.Levels[0])
	}
	if err := c.RecordResponse(ResponseRequest{Level: 2, Type: ResponseAccepted}, t0.Add(20*time.Minute)); err != nil {
		t.Errorf("response on current level error = %v", err)
	}
}

func TestTerminalTransitions(t *testing.T) {
	t.Run("fail closes open level", func(t *testing.T) {
		c := openCase(t)
		_ = c.Start("USR-001", "system", t0)
		if err := c.Fail("system", "level 3 timed out", t0.Add(time.Hour)); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if c.Status != StatusFailed || c.Levels[0].ResponseType != ResponseTimeout {
			t.Errorf("after fail: %s, %+v", c.Status, c.Levels[0])
		}
		if c.IsInTimeout(t0.Add(5 * time.Hour)) {
			t.Error("terminal cases are never in timeout")
		}
	})

	t.Run("cancel", func(t *testing.T) {
		c := openCase(t)
		if err := c.Cancel("USR-500", "false alarm", t0); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if !c.Status.Terminal() {
			t.Errorf("cancelled should be terminal")
		}
	})

	t.Run("forward", func(t *testing.T) {
		c := openCase(t)
		_ = c.Start("USR-001", "system", t0)
		if err := c.Forward("USR-001", "", "", t0); !fault.Is(err, fault.KindValidation) {
			t.Errorf("forward without target error = %v", err)
		}
		if err := c.Forward("USR-001", "external-contractor", "electrical", t0); err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		if c.Status != StatusForwarded {
			t.Errorf("status = %s, want forwarded", c.Status)
		}
	})

	t.Run("resolve validates input", func(t *testing.T) {
		c := openCase(t)
		if err := c.Resolve(ResolveRequest{ResolverID: "USR-001", Method: "telepathy"}, t0); !fault.Is(err, fault.KindValidation) {
			t.Errorf("bad method error = %v", err)
		}
		if err := c.Resolve(ResolveRequest{ResolverID: "USR-001", Satisfaction: 6}, t0); !fault.Is(err, fault.KindValidation) {
			t.Errorf("bad satisfaction error = %v", err)
		} else if !strings.Contains(err.Error(), "between 0 and 5") {
			t.Errorf("satisfaction message = %q", err.Error())
		}
		if err := c.Resolve(ResolveRequest{ResolverID: "USR-001", Satisfaction: 0}, t0); err != nil {
			t.Errorf("unrated resolve error = %v", err)
		}
	})
}

func TestChainResponder(t *testing.T) {
	full := Chain{OnDuty: "USR-001", SectorOnDuty: "USR-002", SectorEngineers: []string{"USR-003"}, SectorChief: "USR-200"}
	fallback := Chain{SectorEngineers: []string{"USR-003", "USR-004"}}

	tests := []struct {
		name     string
		chain    Chain
		level    int
		want     string
		wantKind fault.Kind
	}{
		{"level 1 on duty", full, 1, "USR-001", ""},
		{"level 1 no roster", fallback, 1, "", fault.KindNoActiveRoster},
		{"level 2 sector roster", full, 2, "USR-002", ""},
		{"level 2 falls back to engineer", fallback, 2, "USR-003", ""},
		{"level 2 nobody", Chain{}, 2, "", fault.KindNoEligiblePersonnel},
		{"level 3 chief", full, 3, "USR-200", ""},
		{"level 3 no chief", fallback, 3, "", fault.KindNotFound},
		{"level 4", full, 4, "", fault.KindMaxLevelReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.chain.Responder(tt.level)
			if tt.wantKind != "" {
				if !fault.Is(err, tt.wantKind) {
					t.Errorf("Responder(%d) error = %v, want %s", tt.level, err, tt.wantKind)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Responder(%d) = %s, %v; want %s", tt.level, got, err, tt.want)
			}
		})
	}
}
