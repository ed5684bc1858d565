package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/effects"
	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/ports/secondary"
)

func day(s string) time.Time {
	d, err := calendar.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ============================================================================
// Roster repository
// ============================================================================

var _ secondary.RosterRepository = (*mockRosterRepository)(nil)

type mockRosterRepository struct {
	mu      sync.Mutex
	rosters map[string]*roster.Roster
	nextID  int
}

func newMockRosterRepository() *mockRosterRepository {
	return &mockRosterRepository{rosters: make(map[string]*roster.Roster), nextID: 1}
}

func (m *mockRosterRepository) Create(ctx context.Context, r *roster.Roster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rosters[r.ID]; exists {
		return fmt.Errorf("roster %s already exists", r.ID)
	}
	r.Version = 1
	m.rosters[r.ID] = r
	return nil
}

func (m *mockRosterRepository) GetByID(ctx context.Context, id string) (*roster.Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rosters[id]; ok {
		return r, nil
	}
	return nil, fault.New(fault.KindNotFound, "roster %s not found", id)
}

func (m *mockRosterRepository) Update(ctx context.Context, r *roster.Roster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rosters[r.ID]; !ok {
		return fault.New(fault.KindNotFound, "roster %s not found", r.ID)
	}
	r.Version++
	m.rosters[r.ID] = r
	return nil
}

func (m *mockRosterRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rosters, id)
	return nil
}

func (m *mockRosterRepository) List(ctx context.Context, f secondary.RosterFilters) ([]*roster.Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*roster.Roster
	for _, r := range m.rosters {
		if f.ScopeType != "" && string(r.Scope.Type) != f.ScopeType {
			continue
		}
		if f.Site != "" && r.Scope.Site != f.Site {
			continue
		}
		if f.Sector != "" && r.Scope.Sector != f.Sector {
			continue
		}
		if f.Service != "" && r.Scope.Service != f.Service {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, string(r.Status)) {
			continue
		}
		if f.OverlapStart != nil && r.End.Before(*f.OverlapStart) {
			continue
		}
		if f.OverlapEnd != nil && r.Start.After(*f.OverlapEnd) {
			continue
		}
		if f.StartsOnOrAfter != nil && r.Start.Before(*f.StartsOnOrAfter) {
			continue
		}
		if f.UserID != "" {
			held := false
			for _, a := range r.Assignments {
				if a.UserID == f.UserID || a.Replacement == f.UserID {
					held = true
				}
			}
			if !held {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *mockRosterRepository) GetNextID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("ROSTER-%03d", id), nil
}

// put stores a ready-made roster, bypassing ID allocation.
func (m *mockRosterRepository) put(r *roster.Roster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rosters[r.ID] = r
}

// ============================================================================
// Unavailability repository
// ============================================================================

var _ secondary.UnavailabilityRepository = (*mockUnavailabilityRepository)(nil)

type mockUnavailabilityRepository struct {
	mu     sync.Mutex
	items  map[string]*unavailability.Unavailability
	nextID int
}

func newMockUnavailabilityRepository() *mockUnavailabilityRepository {
	return &mockUnavailabilityRepository{items: make(map[string]*unavailability.Unavailability), nextID: 1}
}

func (m *mockUnavailabilityRepository) Create(ctx context.Context, u *unavailability.Unavailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Version = 1
	m.items[u.ID] = u
	return nil
}

func (m *mockUnavailabilityRepository) GetByID(ctx context.Context, id string) (*unavailability.Unavailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.items[id]; ok {
		return u, nil
	}
	return nil, fault.New(fault.KindNotFound, "unavailability %s not found", id)
}

func (m *mockUnavailabilityRepository) Update(ctx context.Context, u *unavailability.Unavailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Version++
	m.items[u.ID] = u
	return nil
}

func (m *mockUnavailabilityRepository) List(ctx context.Context, f secondary.UnavailabilityFilters) ([]*unavailability.Unavailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*unavailability.Unavailability
	for _, u := range m.items {
		if f.UserID != "" && u.UserID != f.UserID {
			continue
		}
		if len(f.UserIDs) > 0 && !contains(f.UserIDs, u.UserID) {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, string(u.Status)) {
			continue
		}
		if f.OverlapStart != nil && u.End.Before(*f.OverlapStart) {
			continue
		}
		if f.OverlapEnd != nil && u.Start.After(*f.OverlapEnd) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUnavailabilityRepository) GetNextID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("UNAV-%03d", id), nil
}

// ============================================================================
// Escalation repository
// ============================================================================

var _ secondary.EscalationRepository = (*mockEscalationRepository)(nil)

type mockEscalationRepository struct {
	cases     map[string]*escalation.Case
	nextID    int
	updateErr error
}

func newMockEscalationRepository() *mockEscalationRepository {
	return &mockEscalationRepository{cases: make(map[string]*escalation.Case), nextID: 1}
}

func (m *mockEscalationRepository) Create(ctx context.Context, c *escalation.Case) error {
	c.Version = 1
	m.cases[c.ID] = c
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id string) (*escalation.Case, error) {
	if c, ok := m.cases[id]; ok {
		return c, nil
	}
	return nil, fault.New(fault.KindNotFound, "escalation %s not found", id)
}

func (m *mockEscalationRepository) Update(ctx context.Context, c *escalation.Case) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	c.Version++
	m.cases[c.ID] = c
	return nil
}

func (m *mockEscalationRepository) List(ctx context.Context, f secondary.EscalationFilters) ([]*escalation.Case, error) {
	var out []*escalation.Case
	for _, c := range m.cases {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if f.Site != "" && c.Site != f.Site {
			continue
		}
		if f.Sector != "" && c.Sector != f.Sector {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockEscalationRepository) GetNextID(ctx context.Context) (string, error) {
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("ESC-%03d", id), nil
}

// ============================================================================
// Directory
// ============================================================================

var _ secondary.Directory = (*mockDirectory)(nil)

type mockDirectory struct {
	users    map[string]identity.User
	services map[string]secondary.ServiceConfigRecord
	chiefs   map[string]string
}

func newMockDirectory(users ...identity.User) *mockDirectory {
	d := &mockDirectory{
		users:    make(map[string]identity.User),
		services: make(map[string]secondary.ServiceConfigRecord),
		chiefs:   make(map[string]string),
	}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *mockDirectory) GetUser(ctx context.Context, id string) (*identity.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "user %s not found", id)
	}
	return &u, nil
}

func (d *mockDirectory) ActiveUsersByRoleAndScope(ctx context.Context, role identity.Role, site, sector, service string) ([]identity.User, error) {
	var out []identity.User
	for _, u := range d.users {
		if !u.Active || u.Role != role {
			continue
		}
		if (site != "" && u.Site != site) || (sector != "" && u.Sector != sector) || (service != "" && u.Service != service) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *mockDirectory) ServiceConfig(ctx context.Context, serviceID string) (*secondary.ServiceConfigRecord, error) {
	cfg, ok := d.services[serviceID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "service %s not found", serviceID)
	}
	return &cfg, nil
}

func (d *mockDirectory) SectorChief(ctx context.Context, sectorID string) (string, error) {
	return d.chiefs[sectorID], nil
}

// ============================================================================
// Log writer and effect executor
// ============================================================================

var _ secondary.AuditLogRepository = (*mockAuditLog)(nil)

// mockAuditLog keeps the trail in memory. entries holds one readable line
// per record for quick assertions.
type mockAuditLog struct {
	mu      sync.Mutex
	now     func() time.Time
	records []secondary.AuditEntry
	entries []string
}

func (m *mockAuditLog) Record(ctx context.Context, e secondary.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = fmt.Sprintf("LOG-%04d", len(m.records)+1)
	if e.At.IsZero() && m.now != nil {
		e.At = m.now()
	}
	line := fmt.Sprintf("%s %s %s", e.Action, e.EntityType, e.EntityID)
	if e.Field != "" {
		line += fmt.Sprintf(" %s %s->%s", e.Field, e.OldValue, e.NewValue)
	}
	m.records = append(m.records, e)
	m.entries = append(m.entries, line)
	return nil
}

func (m *mockAuditLog) List(ctx context.Context, q secondary.AuditQuery) ([]*secondary.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.AuditEntry
	for i := len(m.records) - 1; i >= 0; i-- {
		e := m.records[i]
		if (q.EntityType != "" && e.EntityType != q.EntityType) ||
			(q.EntityID != "" && e.EntityID != q.EntityID) ||
			(q.ActorID != "" && e.ActorID != q.ActorID) ||
			(q.Action != "" && e.Action != q.Action) ||
			(q.Site != "" && e.Site != q.Site) ||
			(q.Sector != "" && e.Sector != q.Sector) ||
			(!q.Since.IsZero() && e.At.Before(q.Since)) {
			continue
		}
		out = append(out, &e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockAuditLog) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, e := range m.records {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	n := len(m.records) - len(kept)
	m.records = kept
	return n, nil
}

var _ EffectExecutor = (*recordingExecutor)(nil)

type recordingExecutor struct {
	mu      sync.Mutex
	effects []effects.Effect
}

func (e *recordingExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.effects = append(e.effects, effs...)
	return nil
}

func (e *recordingExecutor) ofType(t string) []effects.Effect {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []effects.Effect
	for _, eff := range e.effects {
		if eff.EffectType() == t {
			out = append(out, eff)
		}
	}
	return out
}

var _ secondary.EventPublisher = (*mockPublisher)(nil)

type mockPublisher struct {
	events []secondary.Event
	err    error
}

func (p *mockPublisher) Publish(ctx context.Context, ev secondary.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

// ============================================================================
// Fixtures
// ============================================================================

var (
	adminActor  = identity.Actor{ID: "ADM-001", Role: identity.RoleAdmin}
	sectorChief = identity.Actor{ID: "USR-CS1", Role: identity.RoleSectorChief, Site: "SITE-A", Sector: "SEC-1"}
	serviceBoss = identity.Actor{ID: "USR-CH1", Role: identity.RoleServiceChief, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1"}
	outsider    = identity.Actor{ID: "USR-X", Role: identity.RoleCollaborator, Site: "SITE-B", Sector: "SEC-9", Service: "SRV-9"}

	serviceScope = identity.Scope{Type: identity.ScopeService, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1"}
	sectorScope  = identity.Scope{Type: identity.ScopeSector, Site: "SITE-A", Sector: "SEC-1"}
)

func collaborator(id string) identity.User {
	return identity.User{ID: id, Role: identity.RoleCollaborator, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1", Active: true}
}

func engineer(id string) identity.User {
	return identity.User{ID: id, Role: identity.RoleEngineer, Site: "SITE-A", Sector: "SEC-1", Active: true}
}

// testDirectory is a sector with one service of two collaborators and two engineers.
func testDirectory() *mockDirectory {
	d := newMockDirectory(
		collaborator("USR-001"),
		collaborator("USR-002"),
		engineer("ENG-001"),
		engineer("ENG-002"),
		identity.User{ID: "USR-CH1", Role: identity.RoleServiceChief, Site: "SITE-A", Sector: "SEC-1", Service: "SRV-1", Active: true},
		identity.User{ID: "USR-CS1", Role: identity.RoleSectorChief, Site: "SITE-A", Sector: "SEC-1", Active: true},
	)
	d.services["SRV-1"] = secondary.ServiceConfigRecord{ServiceID: "SRV-1", SectorID: "SEC-1", ChiefID: "USR-CH1"}
	d.chiefs["SEC-1"] = "USR-CS1"
	return d
}

// publishedRoster builds a published roster with one assignment per (day, user) pair.
func publishedRoster(id string, scope identity.Scope, start, end string, slots map[string]string) *roster.Roster {
	r, err := roster.New(id, scope, day(start), day(end), "ADM-001", day(start))
	if err != nil {
		panic(err)
	}
	for d, u := range slots {
		if err := r.AddAssignment(roster.Assignment{Date: day(d), UserID: u}, day(start)); err != nil {
			panic(err)
		}
	}
	r.Status = roster.StatusPublished
	return r
}
