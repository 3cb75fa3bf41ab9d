package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/session"
	"voiceagent-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrProvisioningFailed     = errors.New("agents: provisioning failed")
	ErrProvisioningInProgress = errors.New("agents: provisioning already in progress")
	ErrNotRetryable           = errors.New("agents: agent is not in a retryable state")
	ErrForbidden              = errors.New("agents: agent belongs to another client")
)

// Mode decides what a creator failure means.
type Mode string

const (
	// ModeStrict records the failure and leaves the agent retryable.
	ModeStrict Mode = "strict"
	// ModePlaceholder synthesizes ids and reports success anyway.
	ModePlaceholder Mode = "placeholder"
)

// Limiter caps concurrent work per subject.
type Limiter interface {
	Acquire(ctx context.Context, subject string) (release func(), ok bool, err error)
}

// Form is the agent configuration step of onboarding.
type Form struct {
	AgentName    string   `json:"agentName" binding:"required,max=80"`
	AgentVoice   string   `json:"agentVoice" binding:"max=120"`
	FirstMessage string   `json:"firstMessage" binding:"max=1000"`
	SystemPrompt string   `json:"systemPrompt" binding:"max=20000"`
	Model        string   `json:"model" binding:"max=80"`
	Temperature  *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

type Provisioner struct {
	repo    Repository
	creator Creator
	mode    Mode
	store   *session.Store
	limiter Limiter
	audit   *audit.Service
	clock   func() time.Time
}

func NewProvisioner(repo Repository, creator Creator, mode Mode, store *session.Store, limiter Limiter, au *audit.Service) *Provisioner {
	if mode == "" {
		mode = ModeStrict
	}
	return &Provisioner{
		repo:    repo,
		creator: creator,
		mode:    mode,
		store:   store,
		limiter: limiter,
		audit:   au,
		clock:   time.Now,
	}
}

func (p *Provisioner) Mode() Mode { return p.mode }

// Provision creates a new agent for the client and stands up its assistant.
// In strict mode a creator failure returns the stored provisioning_failed
// agent together with ErrProvisioningFailed.
func (p *Provisioner) Provision(ctx context.Context, userID, clientID, plan string, f Form) (Agent, error) {
	release, err := p.acquire(ctx, clientID)
	if err != nil {
		return Agent{}, err
	}
	defer release()

	temp := DefaultTemperature
	if f.Temperature != nil {
		temp = *f.Temperature
	}
	a := Agent{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		AgentName:    strings.TrimSpace(f.AgentName),
		AgentVoice:   f.AgentVoice,
		FirstMessage: f.FirstMessage,
		SystemPrompt: f.SystemPrompt,
		Model:        f.Model,
		Temperature:  temp,
		Status:       StatusProvisioning,
		CreatedAt:    p.clock().UTC(),
	}
	if err := p.repo.Create(ctx, a); err != nil {
		return Agent{}, err
	}
	return p.run(ctx, userID, plan, a)
}

// Retry re-runs the creator for an agent left failed or on placeholder ids.
func (p *Provisioner) Retry(ctx context.Context, userID, clientID, plan, agentID string) (Agent, error) {
	release, err := p.acquire(ctx, clientID)
	if err != nil {
		return Agent{}, err
	}
	defer release()

	a, err := p.repo.Get(ctx, agentID)
	if err != nil {
		return Agent{}, err
	}
	if a.ClientID != clientID {
		return Agent{}, ErrForbidden
	}
	if !a.Retryable() && !p.stalled(a) {
		return Agent{}, ErrNotRetryable
	}
	a.Status = StatusProvisioning
	a.VapiAssistantID = ""
	a.LastError = ""
	return p.run(ctx, userID, plan, a)
}

func (p *Provisioner) run(ctx context.Context, userID, plan string, a Agent) (Agent, error) {
	log := logger.From(ctx).With("client_id", a.ClientID, "agent_id", a.ID, "creator", p.creator.Name())

	res, cerr := p.creator.CreateAgent(ctx, CreateRequest{
		ClientID:     a.ClientID,
		Plan:         plan,
		AgentName:    a.AgentName,
		AgentVoice:   a.AgentVoice,
		FirstMessage: a.FirstMessage,
		SystemPrompt: a.SystemPrompt,
		Model:        a.Model,
		Temperature:  a.Temperature,
	})

	switch {
	case cerr == nil:
		a.Status = StatusActive
		a.LastError = ""
		a.VapiAssistantID = res.VapiAssistantID
		a.AssignedPhoneNumber = res.AssignedPhoneNumber
		a.WhatsappNumber = res.WhatsappNumber
	case p.mode == ModePlaceholder:
		log.Warn("assistant creation failed, using placeholder", "error", cerr)
		a.Status = StatusPlaceholder
		a.LastError = cerr.Error()
		a.VapiAssistantID = PlaceholderPrefix + uuid.NewString()
	default:
		log.Error("assistant creation failed", "error", cerr)
		a.Status = StatusProvisioningFailed
		a.LastError = cerr.Error()
	}

	// the outcome is persisted even when the caller has gone away mid-call
	wctx := context.WithoutCancel(ctx)
	if err := p.repo.Update(wctx, a); err != nil {
		return Agent{}, err
	}
	if err := p.store.SetAgent(wctx, userID, a.SessionCopy()); err != nil {
		log.Warn("session agent copy failed", "error", err)
	}

	if a.Status == StatusProvisioningFailed {
		p.record(wctx, audit.EventTypeProvisioningError, userID, a, a.LastError)
		return a, fmt.Errorf("%w: %v", ErrProvisioningFailed, cerr)
	}
	p.record(wctx, audit.EventTypeAgentProvisioned, userID, a, "status "+string(a.Status))
	return a, nil
}

// stalled reports a row left in provisioning by an attempt that died before
// writing its outcome. Retry already holds the client's cap, so with a
// limiter no other attempt can be running; without one the row must be old.
func (p *Provisioner) stalled(a Agent) bool {
	if a.Status != StatusProvisioning {
		return false
	}
	if p.limiter != nil {
		return true
	}
	return p.clock().Sub(a.UpdatedAt) > StaleProvisioningAfter
}

func (p *Provisioner) acquire(ctx context.Context, clientID string) (func(), error) {
	if p.limiter == nil {
		return func() {}, nil
	}
	release, ok, err := p.limiter.Acquire(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProvisioningInProgress
	}
	return release, nil
}

func (p *Provisioner) record(ctx context.Context, typ audit.EventType, userID string, a Agent, msg string) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, typ, a.ClientID, userID, a.ID, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "error", err)
	}
}
