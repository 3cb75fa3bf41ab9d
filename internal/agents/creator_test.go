package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/client"
)

type fakeAssistants struct {
	created voiceai.Assistant
	patched voiceai.Assistant
	patchID string
	err     error
}

func (f *fakeAssistants) CreateAssistant(_ context.Context, a voiceai.Assistant) (voiceai.Assistant, error) {
	f.created = a
	if f.err != nil {
		return voiceai.Assistant{}, f.err
	}
	a.ID = "asst_new"
	return a, nil
}

func (f *fakeAssistants) UpdateAssistant(_ context.Context, id string, patch voiceai.Assistant) (voiceai.Assistant, error) {
	f.patchID = id
	f.patched = patch
	return patch, f.err
}

func TestVoiceAICreator_BuildsAssistant(t *testing.T) {
	api := &fakeAssistants{}
	c := &VoiceAICreator{API: api, ServerURL: "https://api.example.com/api/voice/webhook"}

	res, err := c.CreateAgent(context.Background(), CreateRequest{
		ClientID: "c1", Plan: "starter", AgentName: "Front Desk", AgentVoice: "rachel",
		FirstMessage: "Hi!", SystemPrompt: "be nice", Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.VapiAssistantID != "asst_new" {
		t.Fatalf("unexpected result %+v", res)
	}
	a := api.created
	if a.Voice == nil || a.Voice.VoiceID != "rachel" || a.SystemPrompt() != "be nice" {
		t.Fatalf("unexpected assistant %+v", a)
	}
	if a.Model.Model != DefaultModel || *a.Model.Temperature != 0.3 || a.Metadata["clientId"] != "c1" {
		t.Fatalf("unexpected model/metadata %+v %+v", a.Model, a.Metadata)
	}
}

func TestBackendCreator_UsesSiblingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agents/create" || r.Header.Get("Authorization") != "Bearer svc" {
			t.Fatalf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		var in client.BackendAgentRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.ClientID != "c1" || in.AgentName != "Front Desk" {
			t.Fatalf("unexpected body %+v", in)
		}
		_, _ = w.Write([]byte(`{"agentId":"remote_1","vapiAssistantId":"asst_9","assignedPhoneNumber":"+15550199","whatsappNumber":"+15550198"}`))
	}))
	defer srv.Close()

	sdk := client.New(srv.URL, client.NewMemoryStore(map[string]string{client.KeyAccessToken: "svc"}))
	res, err := (&BackendCreator{API: sdk}).CreateAgent(context.Background(), CreateRequest{ClientID: "c1", AgentName: "Front Desk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.VapiAssistantID != "asst_9" || res.WhatsappNumber != "+15550198" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestBackendCreator_ExpiredServiceSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sdk := client.New(srv.URL, client.NewMemoryStore(map[string]string{client.KeyAccessToken: "svc", client.KeyRefreshToken: "r"}))
	_, err := (&BackendCreator{API: sdk}).CreateAgent(context.Background(), CreateRequest{ClientID: "c1"})
	if !errors.Is(err, client.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
