package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"voiceagent-platform/internal/agents"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/plans"
	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/logger"
)

var (
	ErrInvalidRequest = errors.New("dashboard: invalid request")
	ErrNoAssistant    = errors.New("dashboard: no assistant configured")
	ErrBusy           = errors.New("dashboard: too many concurrent requests")
	ErrUpstream       = errors.New("dashboard: call history unavailable")
)

const recentCallsLimit = 10

// CallSource lists calls at the voice-AI provider.
type CallSource interface {
	ListCalls(ctx context.Context, p voiceai.ListCallsParams) ([]voiceai.RawCall, error)
}

// AssistantResolver is the session-store lookup of the user's assistant id.
type AssistantResolver interface {
	ResolveAssistantID(ctx context.Context, userID string) (string, bool, error)
}

type AgentLookup interface {
	LatestForClient(ctx context.Context, clientID string) (agents.Agent, error)
}

type Limiter interface {
	Acquire(ctx context.Context, subject string) (release func(), ok bool, err error)
}

// Service aggregates call history for the dashboard. Nothing is cached:
// every request fetches the provider's list again.
type Service struct {
	source   CallSource
	sessions AssistantResolver
	agents   AgentLookup
	logs     calls.LogRepository
	catalog  *plans.Catalog
	limiter  Limiter
	clock    func() time.Time
}

func NewService(source CallSource, sessions AssistantResolver, ag AgentLookup, logs calls.LogRepository, catalog *plans.Catalog, limiter Limiter) *Service {
	return &Service{
		source:   source,
		sessions: sessions,
		agents:   ag,
		logs:     logs,
		catalog:  catalog,
		limiter:  limiter,
		clock:    time.Now,
	}
}

// ResolveAssistantID checks the session copy first, then the latest agent row.
// Placeholder ids never resolve.
func (s *Service) ResolveAssistantID(ctx context.Context, userID, clientID string) (string, error) {
	if s.sessions != nil && userID != "" {
		id, ok, err := s.sessions.ResolveAssistantID(ctx, userID)
		if err != nil {
			logger.From(ctx).Warn("session assistant lookup failed", "user_id", userID, "error", err)
		} else if ok && (agents.Agent{VapiAssistantID: id}).HasLiveAssistant() {
			return id, nil
		}
	}
	if s.agents != nil && clientID != "" {
		a, err := s.agents.LatestForClient(ctx, clientID)
		if err == nil && a.HasLiveAssistant() {
			return a.VapiAssistantID, nil
		}
		if err != nil && !errors.Is(err, agents.ErrNotFound) {
			return "", err
		}
	}
	return "", ErrNoAssistant
}

func (s *Service) Stats(ctx context.Context, req StatsRequest) (Stats, error) {
	if req.UserID == "" && req.ClientID == "" {
		return Stats{}, ErrInvalidRequest
	}
	if s.source == nil {
		return Stats{}, errors.New("dashboard: call source not configured")
	}

	if s.limiter != nil {
		release, ok, err := s.limiter.Acquire(ctx, req.ClientID)
		if err != nil {
			return Stats{}, err
		}
		if !ok {
			return Stats{}, ErrBusy
		}
		defer release()
	}

	assistantID, err := s.ResolveAssistantID(ctx, req.UserID, req.ClientID)
	if err != nil {
		return Stats{}, err
	}

	raw, err := s.source.ListCalls(ctx, voiceai.ListCallsParams{AssistantID: assistantID})
	if err != nil {
		logger.From(ctx).Error("call history fetch failed", "assistant_id", assistantID, "error", err)
		return Stats{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// the provider may ignore the filter; keep only this assistant's calls
	var mine []calls.Call
	for _, c := range voiceai.ToCalls(raw) {
		if c.AssistantID == assistantID {
			mine = append(mine, c)
		}
	}

	out := Aggregate(mine, s.clock())
	out.AssistantID = assistantID

	if req.Plan != "" && s.catalog != nil {
		secs := make([]int, 0, len(mine))
		for _, c := range mine {
			secs = append(secs, c.DurationSeconds)
		}
		if u, err := s.catalog.Usage(req.Plan, secs); err == nil {
			out.Usage = &u
		}
	}
	return out, nil
}

// CallLogs returns end-of-call reports received by the webhook for the
// user's assistant, newest first.
func (s *Service) CallLogs(ctx context.Context, req StatsRequest, limit int) ([]calls.Call, error) {
	if s.logs == nil {
		return nil, errors.New("dashboard: call log repository not configured")
	}
	assistantID, err := s.ResolveAssistantID(ctx, req.UserID, req.ClientID)
	if err != nil {
		return nil, err
	}
	list, err := s.logs.ListByAssistant(ctx, assistantID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []calls.Call{}
	}
	return list, nil
}

// Aggregate computes dashboard counters. A call counts as successful only when
// it ended with the assistant closing the conversation. "Today" compares the
// UTC ISO date prefix of createdAt with now.
func Aggregate(list []calls.Call, now time.Time) Stats {
	out := Stats{RecentCalls: []calls.Call{}}
	today := now.UTC().Format("2006-01-02")

	for _, c := range list {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.Succeeded() {
			out.SuccessfulCalls++
		}
		if c.CreatedAt.UTC().Format(time.RFC3339)[:10] == today {
			out.TodayCalls++
		}
	}
	out.SuccessRate = SuccessRate(out.SuccessfulCalls, out.TotalCalls)
	if out.TotalCalls > 0 {
		avg := float64(out.TotalDurationSeconds) / float64(out.TotalCalls) / 60
		out.AverageDurationMinutes = math.Round(avg*10) / 10
	}

	n := len(list)
	if n > recentCallsLimit {
		n = recentCallsLimit
	}
	out.RecentCalls = append(out.RecentCalls, newestFirst(list)[:n]...)
	return out
}

// SuccessRate is round(successes/total*100), or 0 with no calls.
func SuccessRate(successes, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(successes) / float64(total) * 100))
}

func newestFirst(list []calls.Call) []calls.Call {
	out := make([]calls.Call, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
