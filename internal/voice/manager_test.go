package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/voiceai"
)

type fakeCallAPI struct {
	mu       sync.Mutex
	startErr error
	endErr   error
	ended    []voiceai.WebCall
}

func (f *fakeCallAPI) StartWebCall(_ context.Context, assistantID string) (voiceai.WebCall, error) {
	if f.startErr != nil {
		return voiceai.WebCall{}, f.startErr
	}
	return voiceai.WebCall{ID: "call_" + assistantID, WebCallURL: "https://call.example/x", ControlURL: "https://control.example/x"}, nil
}

func (f *fakeCallAPI) EndCall(_ context.Context, wc voiceai.WebCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, wc)
	return f.endErr
}

type recorder struct {
	ch chan Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan Event, 32)} }

func (r *recorder) Publish(_ string, ev Event) { r.ch <- ev }

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event published")
		return Event{}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateConnecting, true},
		{StateIdle, StateSpeaking, false},
		{StateConnecting, StateListening, true},
		{StateListening, StateSpeaking, true},
		{StateSpeaking, StateListening, true},
		{StateSpeaking, StateDisconnected, true},
		{StateDisconnected, StateListening, false},
		{StateSpeaking, StateIdle, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	logs := calls.NewMemoryRepo()
	m := NewManager(&fakeCallAPI{}, logs, rec, time.Minute)

	s, err := m.Start(ctx, "u1", "asst_1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.CallID != "call_asst_1" || s.State != StateConnecting {
		t.Fatalf("unexpected session %+v", s)
	}
	if ev := rec.next(t); ev.State != StateConnecting {
		t.Fatalf("expected connecting event, got %+v", ev)
	}

	if _, err := m.Start(ctx, "u1", "asst_1"); !errors.Is(err, ErrCallActive) {
		t.Fatalf("expected ErrCallActive, got %v", err)
	}

	steps := []struct {
		msg  voiceai.ServerMessage
		want State
	}{
		{voiceai.ServerMessage{Type: voiceai.EventStatusUpdate, Status: "in-progress"}, StateListening},
		{voiceai.ServerMessage{Type: voiceai.EventSpeechUpdate, Role: "assistant", Status: "started"}, StateSpeaking},
		{voiceai.ServerMessage{Type: voiceai.EventSpeechUpdate, Role: "assistant", Status: "stopped"}, StateListening},
	}
	for _, st := range steps {
		st.msg.Call.ID = s.CallID
		if err := m.HandleEvent(ctx, st.msg); err != nil {
			t.Fatalf("handle %s: %v", st.msg.Type, err)
		}
		if ev := rec.next(t); ev.State != st.want {
			t.Fatalf("expected %s, got %s", st.want, ev.State)
		}
	}

	dur := 42.0
	report := voiceai.ServerMessage{Type: voiceai.EventEndOfCallReport, EndedReason: calls.EndedReasonAssistantEnded, DurationSeconds: &dur}
	report.Call = voiceai.RawCall{ID: s.CallID, AssistantID: "asst_1", CreatedAt: time.Now()}
	if err := m.HandleEvent(ctx, report); err != nil {
		t.Fatalf("end of call: %v", err)
	}
	if ev := rec.next(t); ev.State != StateDisconnected || ev.Reason != calls.EndedReasonAssistantEnded {
		t.Fatalf("unexpected final event %+v", ev)
	}

	got, err := logs.ListByAssistant(ctx, "asst_1", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected persisted call log, got %+v %v", got, err)
	}
	if !got[0].Succeeded() || got[0].DurationSeconds != 42 {
		t.Fatalf("unexpected call log %+v", got[0])
	}

	if _, err := m.Start(ctx, "u1", "asst_1"); err != nil {
		t.Fatalf("expected restart after disconnect, got %v", err)
	}
}

func TestManager_EndForcesIdleAfterTimeout(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	api := &fakeCallAPI{}
	m := NewManager(api, nil, rec, 20*time.Millisecond)

	s, err := m.Start(ctx, "u1", "asst_1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.next(t)

	if _, err := m.End(ctx, "u1", s.CallID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(api.ended) != 1 || api.ended[0].ControlURL == "" {
		t.Fatalf("expected EndCall with control url, got %+v", api.ended)
	}

	ev := rec.next(t)
	if ev.State != StateIdle || ev.Reason != "end-timeout" {
		t.Fatalf("expected forced idle, got %+v", ev)
	}
	got, _ := m.Get("u1", s.CallID)
	if got.State != StateIdle {
		t.Fatalf("expected idle session, got %s", got.State)
	}
}

func TestManager_StartFailureResets(t *testing.T) {
	rec := newRecorder()
	m := NewManager(&fakeCallAPI{startErr: errors.New("boom")}, nil, rec, time.Minute)

	if _, err := m.Start(context.Background(), "u1", "asst_1"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	rec.next(t)
	if ev := rec.next(t); ev.State != StateIdle {
		t.Fatalf("expected idle after failure, got %+v", ev)
	}
	if _, err := m.Get("u1", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no session, got %v", err)
	}
}

func TestManager_EndUnknownCall(t *testing.T) {
	m := NewManager(&fakeCallAPI{}, nil, nil, time.Minute)
	if _, err := m.End(context.Background(), "u1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_IgnoresEventsAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&fakeCallAPI{}, nil, nil, time.Minute)
	s, _ := m.Start(ctx, "u1", "asst_1")

	msg := voiceai.ServerMessage{Type: voiceai.EventStatusUpdate, Status: "ended"}
	msg.Call.ID = s.CallID
	if err := m.HandleEvent(ctx, msg); err != nil {
		t.Fatalf("ended: %v", err)
	}

	msg = voiceai.ServerMessage{Type: voiceai.EventStatusUpdate, Status: "in-progress"}
	msg.Call.ID = s.CallID
	if err := m.HandleEvent(ctx, msg); err != nil {
		t.Fatalf("expected untracked call to be ignored, got %v", err)
	}
}

func TestManager_PersistsReportForUntrackedCall(t *testing.T) {
	ctx := context.Background()
	logs := calls.NewMemoryRepo()
	m := NewManager(&fakeCallAPI{}, logs, nil, time.Minute)

	msg := voiceai.ServerMessage{Type: voiceai.EventEndOfCallReport, EndedReason: "customer-ended-call"}
	msg.Call = voiceai.RawCall{ID: "phone_1", AssistantID: "asst_9"}
	if err := m.HandleEvent(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := logs.ListByAssistant(ctx, "asst_9", 0)
	if len(got) != 1 || got[0].Status != calls.StatusEnded || got[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected logs %+v", got)
	}
}
