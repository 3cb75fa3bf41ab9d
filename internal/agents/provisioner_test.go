package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/session"
)

type fakeCreator struct {
	res   CreateResult
	err   error
	calls int
	last  CreateRequest
}

func (f *fakeCreator) Name() string { return "fake" }

func (f *fakeCreator) CreateAgent(_ context.Context, req CreateRequest) (CreateResult, error) {
	f.calls++
	f.last = req
	return f.res, f.err
}

type denyLimiter struct{}

func (denyLimiter) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, false, nil
}

type allowLimiter struct{}

func (allowLimiter) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

// cancellingCreator simulates a caller that disconnects mid-call.
type cancellingCreator struct{ cancel context.CancelFunc }

func (c *cancellingCreator) Name() string { return "cancelling" }

func (c *cancellingCreator) CreateAgent(ctx context.Context, _ CreateRequest) (CreateResult, error) {
	c.cancel()
	return CreateResult{}, ctx.Err()
}

// ctxRepo refuses writes on a done context, like a database driver would.
type ctxRepo struct{ *MemoryRepo }

func (r ctxRepo) Update(ctx context.Context, a Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRepo.Update(ctx, a)
}

func newProvisioner(c Creator, mode Mode) (*Provisioner, *MemoryRepo, *session.Store, *audit.MemoryRepo) {
	repo := NewMemoryRepo()
	st := session.NewMemoryStore()
	ar := audit.NewMemoryRepo()
	return NewProvisioner(repo, c, mode, st, nil, audit.NewService(ar)), repo, st, ar
}

func TestProvision_Success(t *testing.T) {
	c := &fakeCreator{res: CreateResult{VapiAssistantID: "asst_1", AssignedPhoneNumber: "+15550100"}}
	p, repo, st, _ := newProvisioner(c, ModeStrict)
	ctx := context.Background()

	a, err := p.Provision(ctx, "u1", "c1", "starter", Form{AgentName: " Front Desk ", SystemPrompt: "be nice"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if a.Status != StatusActive || a.VapiAssistantID != "asst_1" || a.AgentName != "Front Desk" {
		t.Fatalf("unexpected agent %+v", a)
	}
	if c.last.Plan != "starter" || c.last.ClientID != "c1" || c.last.Temperature != DefaultTemperature {
		t.Fatalf("unexpected create request %+v", c.last)
	}

	stored, _ := repo.Get(ctx, a.ID)
	if stored.Status != StatusActive {
		t.Fatalf("expected stored agent active, got %s", stored.Status)
	}
	id, ok, _ := st.ResolveAssistantID(ctx, "u1")
	if !ok || id != "asst_1" {
		t.Fatalf("expected session assistant id, got %q %v", id, ok)
	}
}

func TestProvision_StrictFailureIsExplicit(t *testing.T) {
	c := &fakeCreator{err: errors.New("upstream 500")}
	p, repo, _, ar := newProvisioner(c, ModeStrict)
	ctx := context.Background()

	a, err := p.Provision(ctx, "u1", "c1", "starter", Form{AgentName: "Front Desk"})
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("expected ErrProvisioningFailed, got %v", err)
	}
	if a.Status != StatusProvisioningFailed || a.LastError != "upstream 500" || a.VapiAssistantID != "" {
		t.Fatalf("unexpected agent %+v", a)
	}
	if stored, _ := repo.Get(ctx, a.ID); stored.Status != StatusProvisioningFailed {
		t.Fatalf("expected failure persisted, got %s", stored.Status)
	}
	evs := ar.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeProvisioningError {
		t.Fatalf("expected provisioning_failed audit event, got %+v", evs)
	}
}

func TestProvision_PlaceholderModeReportsSuccess(t *testing.T) {
	c := &fakeCreator{err: errors.New("upstream 500")}
	p, _, st, _ := newProvisioner(c, ModePlaceholder)
	ctx := context.Background()

	a, err := p.Provision(ctx, "u1", "c1", "free", Form{AgentName: "Front Desk"})
	if err != nil {
		t.Fatalf("expected placeholder success, got %v", err)
	}
	if a.Status != StatusPlaceholder || !strings.HasPrefix(a.VapiAssistantID, PlaceholderPrefix) {
		t.Fatalf("unexpected agent %+v", a)
	}
	if a.HasLiveAssistant() {
		t.Fatalf("placeholder must not count as live assistant")
	}
	id, ok, _ := st.ResolveAssistantID(ctx, "u1")
	if !ok || id != a.VapiAssistantID {
		t.Fatalf("expected placeholder id mirrored to session, got %q", id)
	}
}

func TestRetry_RecoversFailedAgent(t *testing.T) {
	c := &fakeCreator{err: errors.New("timeout")}
	p, _, _, _ := newProvisioner(c, ModeStrict)
	ctx := context.Background()

	a, _ := p.Provision(ctx, "u1", "c1", "starter", Form{AgentName: "Front Desk"})

	c.err = nil
	c.res = CreateResult{VapiAssistantID: "asst_2"}
	got, err := p.Retry(ctx, "u1", "c1", "starter", a.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.ID != a.ID || got.Status != StatusActive || got.LastError != "" {
		t.Fatalf("unexpected retried agent %+v", got)
	}

	if _, err := p.Retry(ctx, "u1", "c1", "starter", a.ID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable for active agent, got %v", err)
	}
	if _, err := p.Retry(ctx, "u2", "c2", "starter", a.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProvision_ConcurrencyCap(t *testing.T) {
	c := &fakeCreator{}
	repo := NewMemoryRepo()
	p := NewProvisioner(repo, c, ModeStrict, session.NewMemoryStore(), denyLimiter{}, nil)

	if _, err := p.Provision(context.Background(), "u1", "c1", "starter", Form{AgentName: "x"}); !errors.Is(err, ErrProvisioningInProgress) {
		t.Fatalf("expected ErrProvisioningInProgress, got %v", err)
	}
	if c.calls != 0 {
		t.Fatalf("creator must not be called when capped")
	}
}

func TestProvision_RepeatedSubmissionsCreateSeparateAgents(t *testing.T) {
	c := &fakeCreator{res: CreateResult{VapiAssistantID: "asst"}}
	p, repo, _, _ := newProvisioner(c, ModeStrict)
	ctx := context.Background()

	_, _ = p.Provision(ctx, "u1", "c1", "starter", Form{AgentName: "a"})
	_, _ = p.Provision(ctx, "u1", "c1", "starter", Form{AgentName: "b"})

	list, _ := repo.ListByClient(ctx, "c1")
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(list))
	}
}

func TestProvision_CancelledCallerStillRecordsFailure(t *testing.T) {
	repo := ctxRepo{NewMemoryRepo()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewProvisioner(repo, &cancellingCreator{cancel: cancel}, ModeStrict, session.NewMemoryStore(), nil, nil)

	a, err := p.Provision(ctx, "u1", "c1", "starter", Form{AgentName: "Desk"})
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("expected ErrProvisioningFailed, got %v", err)
	}
	stored, _ := repo.Get(context.Background(), a.ID)
	if stored.Status != StatusProvisioningFailed || stored.LastError == "" {
		t.Fatalf("expected failure persisted, got %+v", stored)
	}
}

func TestRetry_StalledProvisioningRow(t *testing.T) {
	ctx := context.Background()
	c := &fakeCreator{res: CreateResult{VapiAssistantID: "asst_3"}}
	repo := NewMemoryRepo()
	stuck := Agent{ID: "a1", ClientID: "c1", AgentName: "Desk", Status: StatusProvisioning}
	if err := repo.Create(ctx, stuck); err != nil {
		t.Fatalf("create: %v", err)
	}

	p := NewProvisioner(repo, c, ModeStrict, session.NewMemoryStore(), nil, nil)
	if _, err := p.Retry(ctx, "u1", "c1", "starter", "a1"); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected fresh provisioning row to be left alone, got %v", err)
	}
	p.clock = func() time.Time { return time.Now().Add(StaleProvisioningAfter + time.Minute) }
	got, err := p.Retry(ctx, "u1", "c1", "starter", "a1")
	if err != nil || got.Status != StatusActive {
		t.Fatalf("expected stale row recovered, got %+v %v", got, err)
	}

	if err := repo.Create(ctx, Agent{ID: "a2", ClientID: "c1", Status: StatusProvisioning}); err != nil {
		t.Fatalf("create: %v", err)
	}
	capped := NewProvisioner(repo, c, ModeStrict, session.NewMemoryStore(), allowLimiter{}, nil)
	if got, err := capped.Retry(ctx, "u1", "c1", "starter", "a2"); err != nil || got.VapiAssistantID != "asst_3" {
		t.Fatalf("expected row recovered under the cap, got %+v %v", got, err)
	}
}
