package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/logger"
)

var (
	ErrNotFound     = errors.New("voice: session not found")
	ErrCallActive   = errors.New("voice: a call is already active")
	ErrNoAssistant  = errors.New("voice: assistant id required")
	ErrUpstream     = errors.New("voice: provider request failed")
	ErrInvalidState = errors.New("voice: invalid state transition")
)

// DefaultEndTimeout bounds how long a session waits for the provider's
// terminal event after EndCall.
const DefaultEndTimeout = 10 * time.Second

// CallAPI is the slice of the voice-AI client used for live calls.
type CallAPI interface {
	StartWebCall(ctx context.Context, assistantID string) (voiceai.WebCall, error)
	EndCall(ctx context.Context, call voiceai.WebCall) error
}

// Publisher receives every state change. The websocket Hub implements it.
type Publisher interface {
	Publish(userID string, ev Event)
}

type Session struct {
	CallID      string    `json:"callId"`
	UserID      string    `json:"-"`
	AssistantID string    `json:"assistantId"`
	State       State     `json:"state"`
	WebCallURL  string    `json:"webCallUrl,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	controlURL string
	resetTimer *time.Timer
}

// Event is the websocket payload for a state change.
type Event struct {
	Type   string    `json:"type"`
	CallID string    `json:"callId"`
	State  State     `json:"state"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

const EventTypeState = "call_state"

// Manager owns one session per user.
type Manager struct {
	api        CallAPI
	logs       calls.LogRepository
	pub        Publisher
	endTimeout time.Duration
	now        func() time.Time

	mu     sync.Mutex
	byUser map[string]*Session
	byCall map[string]string
}

func NewManager(api CallAPI, logs calls.LogRepository, pub Publisher, endTimeout time.Duration) *Manager {
	if endTimeout <= 0 {
		endTimeout = DefaultEndTimeout
	}
	return &Manager{
		api:        api,
		logs:       logs,
		pub:        pub,
		endTimeout: endTimeout,
		now:        func() time.Time { return time.Now().UTC() },
		byUser:     map[string]*Session{},
		byCall:     map[string]string{},
	}
}

// Start opens a web call for the user's assistant. The session enters
// connecting before the provider answers so the widget can show progress.
func (m *Manager) Start(ctx context.Context, userID, assistantID string) (Session, error) {
	if assistantID == "" {
		return Session{}, ErrNoAssistant
	}

	m.mu.Lock()
	if cur, ok := m.byUser[userID]; ok && cur.State.Active() {
		m.mu.Unlock()
		return Session{}, ErrCallActive
	}
	pending := &Session{UserID: userID, AssistantID: assistantID, State: StateConnecting, StartedAt: m.now(), UpdatedAt: m.now()}
	m.byUser[userID] = pending
	first := *pending
	m.mu.Unlock()
	m.publish(&first, "")

	wc, err := m.api.StartWebCall(ctx, assistantID)
	if err != nil {
		logger.From(ctx).Error("start web call failed", "assistant_id", assistantID, "error", err)
		m.mu.Lock()
		if m.byUser[userID] == pending {
			delete(m.byUser, userID)
		}
		pending.State = StateIdle
		pending.UpdatedAt = m.now()
		failed := *pending
		m.mu.Unlock()
		m.publish(&failed, "start-failed")
		return Session{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pending.CallID = wc.ID
	pending.WebCallURL = wc.WebCallURL
	pending.controlURL = wc.ControlURL
	m.byCall[wc.ID] = userID
	return *pending, nil
}

// End asks the provider to hang up. If no terminal webhook arrives within the
// end timeout the session is forced back to idle.
func (m *Manager) End(ctx context.Context, userID, callID string) (Session, error) {
	m.mu.Lock()
	s, ok := m.lookup(userID, callID)
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrNotFound
	}
	wc := voiceai.WebCall{ID: s.CallID, WebCallURL: s.WebCallURL, ControlURL: s.controlURL}
	if s.State.Active() && s.resetTimer == nil {
		s.resetTimer = time.AfterFunc(m.endTimeout, func() { m.forceReset(userID, callID) })
	}
	snapshot := *s
	m.mu.Unlock()

	if !snapshot.State.Active() {
		return snapshot, nil
	}
	if err := m.api.EndCall(ctx, wc); err != nil {
		logger.From(ctx).Warn("end call failed", "call_id", callID, "error", err)
		return snapshot, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return snapshot, nil
}

func (m *Manager) Get(userID, callID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(userID, callID)
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// HandleEvent applies a provider webhook. End-of-call reports are persisted
// even for calls this process did not start (phone calls, other replicas).
func (m *Manager) HandleEvent(ctx context.Context, msg voiceai.ServerMessage) error {
	log := logger.From(ctx).With("event", msg.Type, "call_id", msg.Call.ID)

	if msg.Type == voiceai.EventEndOfCallReport && m.logs != nil {
		rec := msg.EndOfCallRecord().ToCall()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = m.now()
		}
		if rec.ID != "" {
			if err := m.logs.Append(ctx, rec); err != nil {
				log.Error("persist call log failed", "error", err)
				return err
			}
		}
	}

	next, ok := nextState(msg)
	if !ok {
		return nil
	}

	m.mu.Lock()
	userID, known := m.byCall[msg.Call.ID]
	var s *Session
	if known {
		s = m.byUser[userID]
	}
	if s == nil || s.CallID != msg.Call.ID {
		m.mu.Unlock()
		log.Debug("webhook for untracked call")
		return nil
	}
	if !CanTransition(s.State, next) {
		from := s.State
		m.mu.Unlock()
		log.Warn("ignored state change", "from", string(from), "to", string(next))
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, next)
	}
	s.State = next
	s.UpdatedAt = m.now()
	if next == StateDisconnected {
		if s.resetTimer != nil {
			s.resetTimer.Stop()
			s.resetTimer = nil
		}
		delete(m.byCall, s.CallID)
	}
	snapshot := *s
	m.mu.Unlock()

	m.publish(&snapshot, msg.EndedReason)
	return nil
}

func nextState(msg voiceai.ServerMessage) (State, bool) {
	switch msg.Type {
	case voiceai.EventStatusUpdate:
		switch msg.Status {
		case "queued", "ringing":
			return StateConnecting, true
		case "in-progress":
			return StateListening, true
		case "ended":
			return StateDisconnected, true
		}
	case voiceai.EventSpeechUpdate:
		if msg.Role != "assistant" {
			return "", false
		}
		switch msg.Status {
		case "started":
			return StateSpeaking, true
		case "stopped":
			return StateListening, true
		}
	case voiceai.EventEndOfCallReport:
		return StateDisconnected, true
	}
	return "", false
}

func (m *Manager) forceReset(userID, callID string) {
	m.mu.Lock()
	s, ok := m.byUser[userID]
	if !ok || s.CallID != callID || !s.State.Active() {
		m.mu.Unlock()
		return
	}
	s.State = StateIdle
	s.UpdatedAt = m.now()
	s.resetTimer = nil
	delete(m.byCall, callID)
	snapshot := *s
	m.mu.Unlock()

	m.publish(&snapshot, "end-timeout")
}

// lookup must be called with mu held.
func (m *Manager) lookup(userID, callID string) (*Session, bool) {
	s, ok := m.byUser[userID]
	if !ok || (callID != "" && s.CallID != callID) {
		return nil, false
	}
	return s, true
}

func (m *Manager) publish(s *Session, reason string) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(s.UserID, Event{Type: EventTypeState, CallID: s.CallID, State: s.State, Reason: reason, At: s.UpdatedAt})
}
