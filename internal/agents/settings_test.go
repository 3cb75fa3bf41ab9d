package agents

import (
	"context"
	"errors"
	"testing"

	"voiceagent-platform/internal/session"
)

func seedAgent(t *testing.T, repo *MemoryRepo, a Agent) {
	t.Helper()
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func strp(s string) *string { return &s }

func TestSettings_UpdatePatchesAssistantThenCopies(t *testing.T) {
	repo := NewMemoryRepo()
	seedAgent(t, repo, Agent{ID: "a1", ClientID: "c1", AgentName: "Desk", SystemPrompt: "old", VapiAssistantID: "asst_1", Status: StatusActive, Temperature: 0.5})
	api := &fakeAssistants{}
	st := session.NewMemoryStore()
	s := NewSettings(repo, api, st, nil)
	ctx := context.Background()

	a, err := s.Update(ctx, "u1", "c1", "a1", SettingsPatch{SystemPrompt: strp("new"), FirstMessage: strp("Hello")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if a.SystemPrompt != "new" || a.FirstMessage != "Hello" {
		t.Fatalf("unexpected agent %+v", a)
	}
	if api.patchID != "asst_1" || api.patched.SystemPrompt() != "new" || api.patched.FirstMessage != "Hello" {
		t.Fatalf("unexpected patch %+v", api.patched)
	}
	if api.patched.Model == nil || *api.patched.Model.Temperature != 0.5 {
		t.Fatalf("expected full model object with kept temperature, got %+v", api.patched.Model)
	}
	if api.patched.Voice != nil || api.patched.Name != "" {
		t.Fatalf("expected untouched fields omitted, got %+v", api.patched)
	}

	d, _ := st.Fields(ctx, "u1")
	if d[session.KeyAgentData] == "" {
		t.Fatalf("expected session agent copy")
	}
}

func TestSettings_UpstreamFailureLeavesCopiesUntouched(t *testing.T) {
	repo := NewMemoryRepo()
	seedAgent(t, repo, Agent{ID: "a1", ClientID: "c1", FirstMessage: "Hi", VapiAssistantID: "asst_1", Status: StatusActive})
	s := NewSettings(repo, &fakeAssistants{err: errors.New("boom")}, session.NewMemoryStore(), nil)

	if _, err := s.Update(context.Background(), "u1", "c1", "a1", SettingsPatch{FirstMessage: strp("Yo")}); err == nil {
		t.Fatalf("expected error")
	}
	a, _ := repo.Get(context.Background(), "a1")
	if a.FirstMessage != "Hi" {
		t.Fatalf("expected local copy unchanged, got %q", a.FirstMessage)
	}
}

func TestSettings_Guards(t *testing.T) {
	repo := NewMemoryRepo()
	seedAgent(t, repo, Agent{ID: "a1", ClientID: "c1", VapiAssistantID: PlaceholderPrefix + "x", Status: StatusPlaceholder})
	s := NewSettings(repo, &fakeAssistants{}, session.NewMemoryStore(), nil)
	ctx := context.Background()

	if _, err := s.Update(ctx, "u2", "c2", "a1", SettingsPatch{FirstMessage: strp("x")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := s.Update(ctx, "u1", "c1", "a1", SettingsPatch{FirstMessage: strp("x")}); !errors.Is(err, ErrNotProvisioned) {
		t.Fatalf("expected ErrNotProvisioned, got %v", err)
	}
	if _, err := s.Update(ctx, "u1", "c1", "missing", SettingsPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettings_WhatsAppLastWriterWins(t *testing.T) {
	repo := NewMemoryRepo()
	seedAgent(t, repo, Agent{ID: "a1", ClientID: "c1"})
	st := session.NewMemoryStore()
	s := NewSettings(repo, &fakeAssistants{}, st, nil)
	ctx := context.Background()

	empty, err := s.WhatsApp(ctx, "c1", "a1")
	if err != nil || empty.Enabled {
		t.Fatalf("expected empty defaults, got %+v %v", empty, err)
	}

	_, _ = s.SaveWhatsApp(ctx, "u1", "c1", "a1", WhatsAppSettings{Enabled: true, Greeting: "first"})
	_, _ = s.SaveWhatsApp(ctx, "u1", "c1", "a1", WhatsAppSettings{Enabled: true, Greeting: "second"})

	got, _ := s.WhatsApp(ctx, "c1", "a1")
	if got.Greeting != "second" || got.AgentID != "a1" {
		t.Fatalf("unexpected settings %+v", got)
	}
	fields, _ := st.Fields(ctx, "u1")
	if fields[session.KeyWhatsAppSettings] == "" {
		t.Fatalf("expected whatsapp copy in session")
	}
}

func TestSettings_SetCalendar(t *testing.T) {
	repo := NewMemoryRepo()
	seedAgent(t, repo, Agent{ID: "a1", ClientID: "c1"})
	s := NewSettings(repo, &fakeAssistants{}, session.NewMemoryStore(), nil)

	a, err := s.SetCalendar(context.Background(), "u1", "c1", "a1", "primary")
	if err != nil || a.CalendarID != "primary" {
		t.Fatalf("unexpected %+v %v", a, err)
	}
}
