package onboarding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"voiceagent-platform/internal/agents"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/clients"
	"voiceagent-platform/internal/session"
)

type fakeRegistrar struct {
	calls   int
	clients *clients.MemoryRepo
}

func (f *fakeRegistrar) Register(ctx context.Context, email, _ string, profile clients.Client) (auth.RegisterResult, error) {
	f.calls++
	profile.ID = fmt.Sprintf("user-%d", f.calls)
	profile.Email = email
	if err := f.clients.Create(ctx, profile); err != nil {
		return auth.RegisterResult{}, err
	}
	return auth.RegisterResult{Success: true, RequiresVerification: true, UserID: profile.ID}, nil
}

type fakeProvisioner struct {
	err   error
	calls int
}

func (f *fakeProvisioner) Provision(_ context.Context, _, clientID, _ string, form agents.Form) (agents.Agent, error) {
	f.calls++
	a := agents.Agent{ID: fmt.Sprintf("agent-%d", f.calls), ClientID: clientID, AgentName: form.AgentName, Status: agents.StatusActive}
	if f.err != nil {
		a.Status = agents.StatusProvisioningFailed
		return a, f.err
	}
	return a, nil
}

func (f *fakeProvisioner) Retry(ctx context.Context, userID, clientID, plan, _ string) (agents.Agent, error) {
	return f.Provision(ctx, userID, clientID, plan, agents.Form{AgentName: "retry"})
}

func newFixture() (*Service, *fakeRegistrar, *fakeProvisioner, *clients.MemoryRepo) {
	cr := clients.NewMemoryRepo()
	reg := &fakeRegistrar{clients: cr}
	prov := &fakeProvisioner{}
	return NewService(reg, cr, prov, nil), reg, prov, cr
}

func validForm(plan string) RegistrationForm {
	return RegistrationForm{
		Email:           "owner@acme.test",
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Plan:            plan,
	}
}

func TestRegister_RejectsBeforeBackendCall(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(f *RegistrationForm)
		field string
	}{
		{"short password", func(f *RegistrationForm) { f.Password, f.ConfirmPassword = "short", "short" }, "password"},
		{"mismatch", func(f *RegistrationForm) { f.ConfirmPassword = "correct-horsE" }, "confirmPassword"},
		{"bad email", func(f *RegistrationForm) { f.Email = "owner@" }, "email"},
		{"missing name", func(f *RegistrationForm) { f.FirstName = "  " }, "firstName"},
		{"unknown plan", func(f *RegistrationForm) { f.Plan = "gold" }, "plan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, reg, _, _ := newFixture()
			f := validForm("starter")
			tc.mut(&f)

			_, err := svc.Register(context.Background(), f)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Fields[tc.field] == "" {
				t.Fatalf("expected error on %s, got %v", tc.field, ve.Fields)
			}
			if reg.calls != 0 {
				t.Fatalf("expected no backend call")
			}
		})
	}
}

func TestRegister_PlanDecidesPaymentStep(t *testing.T) {
	svc, _, _, cr := newFixture()
	ctx := context.Background()

	free, err := svc.Register(ctx, validForm("free"))
	if err != nil {
		t.Fatalf("register free: %v", err)
	}
	if free.OnboardingState != StateSuccess || !free.RequiresVerification {
		t.Fatalf("unexpected free result %+v", free)
	}
	c, _ := cr.Get(ctx, free.UserID)
	if c.Status != clients.StatusActive || c.PaymentStatus != clients.PaymentStatusNotRequired {
		t.Fatalf("unexpected free client %+v", c)
	}

	paid, err := svc.Register(ctx, validForm("Professional"))
	if err != nil {
		t.Fatalf("register paid: %v", err)
	}
	if paid.OnboardingState != StatePayment || paid.Plan.PriceMinor == 0 {
		t.Fatalf("unexpected paid result %+v", paid)
	}
	c, _ = cr.Get(ctx, paid.UserID)
	if c.Status != clients.StatusPendingPayment || c.PaymentStatus != clients.PaymentStatusPending {
		t.Fatalf("unexpected paid client %+v", c)
	}
}

func TestSubmitAgent_FromPaymentIsRejected(t *testing.T) {
	svc, _, prov, _ := newFixture()
	ctx := context.Background()
	res, _ := svc.Register(ctx, validForm("starter"))

	_, state, err := svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"})
	if !errors.Is(err, ErrAgentStepNotReady) || state != StatePayment {
		t.Fatalf("expected not ready in payment, got %v %s", err, state)
	}
	if prov.calls != 0 {
		t.Fatalf("provisioner must not be called")
	}

	if st, err := svc.PaymentCompleted(ctx, res.UserID); err != nil || st != StateSuccess {
		t.Fatalf("payment completed: %s %v", st, err)
	}
	if _, state, err = svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"}); err != nil || state != StateDone {
		t.Fatalf("expected done, got %s %v", state, err)
	}
}

func TestSubmitAgent_FailureThenRetry(t *testing.T) {
	svc, _, prov, cr := newFixture()
	ctx := context.Background()
	res, _ := svc.Register(ctx, validForm("free"))

	prov.err = fmt.Errorf("%w: upstream 500", agents.ErrProvisioningFailed)
	a, state, err := svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"})
	if !errors.Is(err, agents.ErrProvisioningFailed) || state != StateProvisioningFailed {
		t.Fatalf("expected provisioning_failed, got %s %v", state, err)
	}
	c, _ := cr.Get(ctx, res.UserID)
	if State(c.OnboardingState) != StateProvisioningFailed {
		t.Fatalf("expected persisted failure state, got %s", c.OnboardingState)
	}

	prov.err = nil
	if _, state, err = svc.RetryAgent(ctx, res.UserID, res.UserID, a.ID); err != nil || state != StateDone {
		t.Fatalf("expected retry to finish onboarding, got %s %v", state, err)
	}
}

func TestSubmitAgent_BusyRestoresState(t *testing.T) {
	svc, _, prov, cr := newFixture()
	ctx := context.Background()
	res, _ := svc.Register(ctx, validForm("free"))

	prov.err = agents.ErrProvisioningInProgress
	_, state, err := svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"})
	if !errors.Is(err, agents.ErrProvisioningInProgress) || state != StateAgentForm {
		t.Fatalf("expected agent_form after busy, got %s %v", state, err)
	}
	c, _ := cr.Get(ctx, res.UserID)
	if State(c.OnboardingState) != StateAgentForm {
		t.Fatalf("unexpected stored state %s", c.OnboardingState)
	}
}

func TestSubmitAgent_RepeatAfterDone(t *testing.T) {
	svc, _, prov, _ := newFixture()
	ctx := context.Background()
	res, _ := svc.Register(ctx, validForm("free"))

	for i := 0; i < 2; i++ {
		if _, state, err := svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"}); err != nil || state != StateDone {
			t.Fatalf("attempt %d: %s %v", i, state, err)
		}
	}
	if prov.calls != 2 {
		t.Fatalf("expected two agents provisioned, got %d", prov.calls)
	}
}

func TestTransitionTable(t *testing.T) {
	if _, err := Transition(StateForm, StateDone); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition")
	}
	if !CanTransition(StateProvisioningFailed, StateProvisioning) {
		t.Fatalf("expected retry transition")
	}
	if AfterForm(true) != StateSuccess || AfterForm(false) != StatePayment {
		t.Fatalf("unexpected AfterForm")
	}
	if !StateDone.Valid() || State("bogus").Valid() {
		t.Fatalf("unexpected Valid")
	}
}

// ctxClients refuses writes on a done context, like a database driver would.
type ctxClients struct{ *clients.MemoryRepo }

func (r ctxClients) SetOnboardingState(ctx context.Context, id, state string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRepo.SetOnboardingState(ctx, id, state)
}

func (r ctxClients) TransitionOnboardingState(ctx context.Context, id string, next func(string) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.MemoryRepo.TransitionOnboardingState(ctx, id, next)
}

type ctxAgents struct{ *agents.MemoryRepo }

func (r ctxAgents) Update(ctx context.Context, a agents.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRepo.Update(ctx, a)
}

type hangupCreator struct{ cancel context.CancelFunc }

func (c *hangupCreator) Name() string { return "hangup" }

func (c *hangupCreator) CreateAgent(ctx context.Context, _ agents.CreateRequest) (agents.CreateResult, error) {
	if c.cancel != nil {
		c.cancel()
		return agents.CreateResult{}, ctx.Err()
	}
	return agents.CreateResult{VapiAssistantID: "asst_1"}, nil
}

func TestSubmitAgent_DisconnectedCallerCanRetry(t *testing.T) {
	cr := ctxClients{clients.NewMemoryRepo()}
	ar := ctxAgents{agents.NewMemoryRepo()}
	creator := &hangupCreator{}
	prov := agents.NewProvisioner(ar, creator, agents.ModeStrict, session.NewMemoryStore(), nil, nil)
	svc := NewService(&fakeRegistrar{clients: cr.MemoryRepo}, cr, prov, nil)

	bg := context.Background()
	res, err := svc.Register(bg, validForm("free"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	creator.cancel = cancel
	a, state, err := svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"})
	if !errors.Is(err, agents.ErrProvisioningFailed) || state != StateProvisioningFailed {
		t.Fatalf("expected provisioning_failed, got %s %v", state, err)
	}
	c, _ := cr.Get(bg, res.UserID)
	if State(c.OnboardingState) != StateProvisioningFailed {
		t.Fatalf("expected stored provisioning_failed, got %s", c.OnboardingState)
	}
	stored, _ := ar.Get(bg, a.ID)
	if stored.Status != agents.StatusProvisioningFailed {
		t.Fatalf("expected stored agent failed, got %s", stored.Status)
	}

	creator.cancel = nil
	got, state, err := svc.RetryAgent(bg, res.UserID, res.UserID, a.ID)
	if err != nil || state != StateDone || got.VapiAssistantID != "asst_1" {
		t.Fatalf("expected retry to finish onboarding, got %s %+v %v", state, got, err)
	}
}

func TestSubmitAgent_ResumesUnsettledProvisioning(t *testing.T) {
	svc, _, _, cr := newFixture()
	ctx := context.Background()
	res, _ := svc.Register(ctx, validForm("free"))
	if err := cr.SetOnboardingState(ctx, res.UserID, string(StateProvisioning)); err != nil {
		t.Fatalf("set state: %v", err)
	}

	_, state, err := svc.SubmitAgent(ctx, res.UserID, res.UserID, agents.Form{AgentName: "Desk"})
	if err != nil || state != StateDone {
		t.Fatalf("expected done, got %s %v", state, err)
	}
}
