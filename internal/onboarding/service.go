package onboarding

import (
	"context"
	"errors"
	"fmt"

	"voiceagent-platform/internal/agents"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/clients"
	"voiceagent-platform/internal/plans"
	"voiceagent-platform/pkg/logger"
)

var ErrAgentStepNotReady = errors.New("onboarding: account is not ready for agent setup")

// Registrar creates the identity and the client profile.
type Registrar interface {
	Register(ctx context.Context, email, password string, profile clients.Client) (auth.RegisterResult, error)
}

type AgentProvisioner interface {
	Provision(ctx context.Context, userID, clientID, plan string, f agents.Form) (agents.Agent, error)
	Retry(ctx context.Context, userID, clientID, plan, agentID string) (agents.Agent, error)
}

type Service struct {
	reg     Registrar
	clients clients.Repository
	prov    AgentProvisioner
	catalog *plans.Catalog
}

func NewService(reg Registrar, cr clients.Repository, prov AgentProvisioner, catalog *plans.Catalog) *Service {
	if catalog == nil {
		catalog = plans.NewCatalog(plans.DefaultCatalog())
	}
	return &Service{reg: reg, clients: cr, prov: prov, catalog: catalog}
}

type RegisterResult struct {
	auth.RegisterResult
	OnboardingState State      `json:"onboardingState"`
	Plan            plans.Plan `json:"plan"`
}

// Register validates the form, then creates the account. Free plans are
// active at once; paid plans wait for payment capture.
func (s *Service) Register(ctx context.Context, f RegistrationForm) (RegisterResult, error) {
	f.normalize()
	if err := f.Validate(); err != nil {
		return RegisterResult{}, err
	}
	plan, err := s.catalog.Get(f.Plan)
	if err != nil {
		return RegisterResult{}, &ValidationError{Fields: map[string]string{"plan": "Please choose a valid plan"}}
	}

	state := AfterForm(plan.IsFree())
	profile := clients.Client{
		FirstName:       f.FirstName,
		LastName:        f.LastName,
		Company:         f.Company,
		Phone:           f.Phone,
		Plan:            plan.ID,
		Status:          clients.StatusActive,
		PaymentStatus:   clients.PaymentStatusNotRequired,
		OnboardingState: string(state),
	}
	if !plan.IsFree() {
		profile.Status = clients.StatusPendingPayment
		profile.PaymentStatus = clients.PaymentStatusPending
	}

	res, err := s.reg.Register(ctx, f.Email, f.Password, profile)
	if err != nil {
		return RegisterResult{}, err
	}
	logger.From(ctx).Info("client registered", "client_id", res.UserID, "plan", plan.ID, "onboarding_state", string(state))
	return RegisterResult{RegisterResult: res, OnboardingState: state, Plan: plan}, nil
}

// State reads the persisted onboarding state.
func (s *Service) State(ctx context.Context, clientID string) (State, error) {
	c, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return "", err
	}
	return State(c.OnboardingState), nil
}

// Advance moves the client along the transition table. The state is read
// and written under the repository's row lock.
func (s *Service) Advance(ctx context.Context, clientID string, to State) (State, error) {
	next, err := s.clients.TransitionOnboardingState(ctx, clientID, func(cur string) (string, error) {
		from := State(cur)
		if from == to {
			return cur, nil
		}
		n, err := Transition(from, to)
		return string(n), err
	})
	return State(next), err
}

// PaymentCompleted is called once a capture has been verified.
func (s *Service) PaymentCompleted(ctx context.Context, clientID string) (State, error) {
	return s.Advance(ctx, clientID, StateSuccess)
}

// SubmitAgent provisions the client's agent from the agent form. Clients that
// already finished onboarding may provision again; their state stays done.
func (s *Service) SubmitAgent(ctx context.Context, userID, clientID string, f agents.Form) (agents.Agent, State, error) {
	c, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return agents.Agent{}, "", err
	}
	from := State(c.OnboardingState)

	if from == StateDone {
		a, err := s.prov.Provision(ctx, userID, clientID, c.Plan, f)
		return a, StateDone, err
	}
	if from == StateSuccess {
		if from, err = s.Advance(ctx, clientID, StateAgentForm); err != nil {
			return agents.Agent{}, from, err
		}
	}
	// provisioning here means an earlier attempt never settled; the
	// provisioner's cap keeps it from overlapping a live one
	if from != StateAgentForm && from != StateProvisioningFailed && from != StateProvisioning {
		return agents.Agent{}, from, fmt.Errorf("%w (state %s)", ErrAgentStepNotReady, from)
	}
	if _, err := s.Advance(ctx, clientID, StateProvisioning); err != nil {
		return agents.Agent{}, from, err
	}

	a, err := s.prov.Provision(ctx, userID, clientID, c.Plan, f)
	return s.settle(ctx, clientID, from, a, err)
}

// RetryAgent re-runs provisioning for an agent left in provisioning_failed.
func (s *Service) RetryAgent(ctx context.Context, userID, clientID, agentID string) (agents.Agent, State, error) {
	c, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return agents.Agent{}, "", err
	}
	from := State(c.OnboardingState)
	if from == StateDone {
		a, err := s.prov.Retry(ctx, userID, clientID, c.Plan, agentID)
		return a, StateDone, err
	}
	if _, err := s.Advance(ctx, clientID, StateProvisioning); err != nil {
		return agents.Agent{}, from, err
	}
	a, err := s.prov.Retry(ctx, userID, clientID, c.Plan, agentID)
	return s.settle(ctx, clientID, from, a, err)
}

// settle records the outcome of a provisioning attempt. Errors that never
// reached the creator (busy, forbidden) restore the previous state.
func (s *Service) settle(ctx context.Context, clientID string, prev State, a agents.Agent, err error) (agents.Agent, State, error) {
	ctx = context.WithoutCancel(ctx)
	log := logger.From(ctx).With("client_id", clientID)
	switch {
	case err == nil:
		if _, aerr := s.Advance(ctx, clientID, StateDone); aerr != nil {
			log.Warn("onboarding state update failed", "error", aerr)
		}
		return a, StateDone, nil
	case errors.Is(err, agents.ErrProvisioningFailed):
		if _, aerr := s.Advance(ctx, clientID, StateProvisioningFailed); aerr != nil {
			log.Warn("onboarding state update failed", "error", aerr)
		}
		return a, StateProvisioningFailed, err
	default:
		// only undo our own provisioning mark; a concurrent attempt may have settled
		_, serr := s.clients.TransitionOnboardingState(ctx, clientID, func(cur string) (string, error) {
			if State(cur) != StateProvisioning {
				return cur, nil
			}
			return string(prev), nil
		})
		if serr != nil {
			log.Warn("onboarding state restore failed", "error", serr)
		}
		return a, prev, err
	}
}
