package payment

import (
	"context"
	"errors"
	"fmt"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/clients"
	"voiceagent-platform/internal/onboarding"
	"voiceagent-platform/internal/plans"
	"voiceagent-platform/pkg/logger"
)

var (
	ErrNoPaymentRequired = errors.New("payment: plan does not require payment")
	ErrNotCompleted      = errors.New("payment: order not completed")
	ErrOrderMismatch     = errors.New("payment: order belongs to another client")
	ErrAlreadyPaid       = errors.New("payment: plan already paid with another order")
	ErrUpstream          = errors.New("payment: processor request failed")
)

type Gateway interface {
	CreateOrder(ctx context.Context, in OrderRequest) (Order, error)
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
}

// OnboardingAdvancer moves the client past the payment step.
type OnboardingAdvancer interface {
	PaymentCompleted(ctx context.Context, clientID string) (onboarding.State, error)
}

type Service struct {
	gw         Gateway
	clients    clients.Repository
	catalog    *plans.Catalog
	onboarding OnboardingAdvancer
	audit      *audit.Service
}

func NewService(gw Gateway, cr clients.Repository, catalog *plans.Catalog, ob OnboardingAdvancer, au *audit.Service) *Service {
	return &Service{gw: gw, clients: cr, catalog: catalog, onboarding: ob, audit: au}
}

type Result struct {
	OrderID         string           `json:"orderId"`
	CaptureID       string           `json:"captureId,omitempty"`
	Amount          Amount           `json:"amount"`
	PaymentStatus   string           `json:"paymentStatus"`
	OnboardingState onboarding.State `json:"onboardingState"`
}

// Checkout opens an order for the client's plan price.
func (s *Service) Checkout(ctx context.Context, clientID, returnURL, cancelURL string) (Order, error) {
	c, plan, err := s.clientPlan(ctx, clientID)
	if err != nil {
		return Order{}, err
	}
	o, err := s.gw.CreateOrder(ctx, OrderRequest{
		ReferenceID: plan.ID,
		CustomID:    c.ID,
		Description: plan.Name + " plan",
		Amount:      Amount{CurrencyCode: plan.Currency, Value: plans.FormatMinor(plan.PriceMinor)},
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		logger.From(ctx).Error("create order failed", "client_id", clientID, "error", err)
		return Order{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return o, nil
}

// Capture settles an approved order and verifies it paid for the client's
// plan before marking the client paid.
func (s *Service) Capture(ctx context.Context, clientID, orderID string) (Result, error) {
	c, plan, err := s.clientPlan(ctx, clientID)
	if err != nil {
		return Result{}, err
	}
	if c.PaymentStatus == clients.PaymentStatusCompleted && c.PaymentID != orderID {
		return Result{}, ErrAlreadyPaid
	}
	if c.PaymentStatus == clients.PaymentStatusCompleted {
		return Result{
			OrderID:         orderID,
			Amount:          Amount{CurrencyCode: plan.Currency, Value: plans.FormatMinor(plan.PriceMinor)},
			PaymentStatus:   string(c.PaymentStatus),
			OnboardingState: onboarding.State(c.OnboardingState),
		}, nil
	}

	log := logger.From(ctx).With("client_id", clientID, "order_id", orderID)
	cp, err := s.gw.CaptureOrder(ctx, orderID)
	if err != nil {
		log.Error("capture failed", "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if cp.Status != StatusCompleted {
		return Result{}, fmt.Errorf("%w: status %s", ErrNotCompleted, cp.Status)
	}
	if cp.CustomID != "" && cp.CustomID != clientID {
		return Result{}, ErrOrderMismatch
	}
	if err := s.catalog.VerifyAmount(plan.ID, cp.Amount.CurrencyCode, cp.Amount.Value); err != nil {
		log.Warn("captured amount does not match plan", "error", err)
		return Result{}, err
	}

	if err := s.clients.MarkPaid(ctx, clientID, orderID); err != nil {
		return Result{}, err
	}
	if err := s.audit.Record(ctx, audit.EventTypePaymentCaptured, clientID, clientID, "",
		fmt.Sprintf("%s %s for plan %s", cp.Amount.Value, cp.Amount.CurrencyCode, plan.ID)); err != nil {
		log.Warn("audit append failed", "error", err)
	}

	state := onboarding.State(c.OnboardingState)
	if s.onboarding != nil {
		next, err := s.onboarding.PaymentCompleted(ctx, clientID)
		if err != nil {
			log.Warn("onboarding advance failed", "error", err)
		} else {
			state = next
		}
	}
	log.Info("payment captured", "capture_id", cp.CaptureID)

	return Result{
		OrderID:         orderID,
		CaptureID:       cp.CaptureID,
		Amount:          cp.Amount,
		PaymentStatus:   string(clients.PaymentStatusCompleted),
		OnboardingState: state,
	}, nil
}

func (s *Service) clientPlan(ctx context.Context, clientID string) (clients.Client, plans.Plan, error) {
	c, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return clients.Client{}, plans.Plan{}, err
	}
	plan, err := s.catalog.Get(c.Plan)
	if err != nil {
		return clients.Client{}, plans.Plan{}, err
	}
	if plan.IsFree() {
		return clients.Client{}, plans.Plan{}, ErrNoPaymentRequired
	}
	return c, plan, nil
}
