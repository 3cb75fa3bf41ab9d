package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"voiceagent-platform/pkg/logger"
	"voiceagent-platform/pkg/utils"
)

// ValidationError carries field-level messages for the form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "leads: validation failed" }

type Relayer interface {
	Send(ctx context.Context, l Lead) error
}

type Service struct {
	repo  Repository
	relay Relayer
	clock func() time.Time
}

func NewService(repo Repository, relay Relayer) *Service {
	return &Service{repo: repo, relay: relay, clock: func() time.Time { return time.Now().UTC() }}
}

// Submit stores the lead, then relays it. A relay failure is logged and the
// lead stays unrelayed; the visitor still gets a success.
func (s *Service) Submit(ctx context.Context, f Form) (Lead, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	if fields := utils.ValidateStruct(f); fields != nil {
		return Lead{}, &ValidationError{Fields: fields}
	}
	if f.Source == "" {
		f.Source = "contact"
	}

	l := Lead{
		ID:        uuid.NewString(),
		Name:      f.Name,
		Email:     f.Email,
		Company:   strings.TrimSpace(f.Company),
		Phone:     strings.TrimSpace(f.Phone),
		Message:   strings.TrimSpace(f.Message),
		Source:    f.Source,
		CreatedAt: s.clock(),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return Lead{}, err
	}

	log := logger.From(ctx).With("lead_id", l.ID, "source", l.Source)
	if s.relay == nil {
		return l, nil
	}
	if err := s.relay.Send(ctx, l); err != nil {
		if errors.Is(err, ErrRelayNotConfigured) {
			log.Debug("lead relay skipped")
		} else {
			log.Warn("lead relay failed", "error", err)
		}
		return l, nil
	}
	if err := s.repo.MarkRelayed(ctx, l.ID); err != nil {
		log.Warn("mark lead relayed failed", "error", err)
		return l, nil
	}
	l.Relayed = true
	return l, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Lead, error) {
	return s.repo.List(ctx, limit)
}
