package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"voiceagent-platform/internal/agents"
	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/calendar"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/clients"
	"voiceagent-platform/internal/config"
	"voiceagent-platform/internal/dashboard"
	"voiceagent-platform/internal/httpapi"
	"voiceagent-platform/internal/leads"
	"voiceagent-platform/internal/onboarding"
	"voiceagent-platform/internal/payment"
	"voiceagent-platform/internal/plans"
	"voiceagent-platform/internal/session"
	"voiceagent-platform/internal/voice"
	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/client"
	"voiceagent-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Concurrency caps on upstream-heavy operations, per client.
const (
	provisioningCap = 1
	dashboardCap    = 2

	provisioningLockTTL = 2 * time.Minute
	dashboardLockTTL    = 30 * time.Second
)

type app struct {
	handlers httpapi.Handlers
	sessions *auth.SessionService
	hub      *voice.Hub
}

// buildApp wires repositories, upstream clients and services. It holds no
// business logic.
func buildApp(cfg config.Config, db *sql.DB, rdb *redis.Client, tokens *auth.Manager, log *slog.Logger) (*app, error) {
	catalog := plans.NewCatalog(plans.DefaultCatalog())
	store := session.NewRedisStore(rdb, cfg.Auth.RefreshTokenTTL)
	auditor := audit.NewService(audit.NewPostgresRepo(db))
	clientRepo := clients.NewPostgresRepo(db)
	agentRepo := agents.NewPostgresRepo(db)
	callLogs := calls.NewPostgresRepo(db)

	var backend auth.Backend
	switch cfg.Auth.Backend {
	case config.AuthBackendIdentity:
		backend = auth.NewIdentityBackend(cfg.Auth.IdentityBaseURL, cfg.Auth.IdentityAPIKey)
	default:
		backend = auth.NewUnifiedBackend(auth.NewPostgresUsers(db))
	}
	sessions := auth.NewSessionService(backend, tokens, store, clientRepo, auditor, cfg.Auth.AdminEmails)

	vai := voiceai.NewClient(cfg.VoiceAI.BaseURL, cfg.VoiceAI.APIKey)

	var creator agents.Creator = &agents.VoiceAICreator{API: vai, ServerURL: cfg.VoiceAI.ServerURL}
	if cfg.Provisioning.Creator == config.CreatorBackend {
		sdk := client.New(cfg.Provisioning.BackendBaseURL, client.NewMemoryStore(map[string]string{
			client.KeyAccessToken:  cfg.Provisioning.BackendAccessToken,
			client.KeyRefreshToken: cfg.Provisioning.BackendRefreshToken,
		}))
		creator = &agents.BackendCreator{API: sdk}
	}

	prov := agents.NewProvisioner(
		agentRepo,
		creator,
		agents.Mode(cfg.Provisioning.Mode),
		store,
		utils.NewCapLimiter(rdb, "cap:provision", provisioningCap, provisioningLockTTL),
		auditor,
	)
	settings := agents.NewSettings(agentRepo, vai, store, auditor)
	ob := onboarding.NewService(sessions, clientRepo, prov, catalog)

	dash := dashboard.NewService(
		vai,
		store,
		agentRepo,
		callLogs,
		catalog,
		utils.NewCapLimiter(rdb, "cap:dashboard", dashboardCap, dashboardLockTTL),
	)

	var checkOrigin func(r *http.Request) bool
	if !cfg.IsProduction() {
		checkOrigin = func(*http.Request) bool { return true }
	}
	hub := voice.NewHub(log, checkOrigin)
	vm := voice.NewManager(vai, callLogs, hub, cfg.VoiceAI.EndTimeout)

	h := httpapi.Handlers{
		Sessions:        sessions,
		Onboarding:      ob,
		Clients:         clientRepo,
		Catalog:         catalog,
		Provisioner:     prov,
		Settings:        settings,
		Dashboard:       dash,
		Voice:           vm,
		Hub:             hub,
		Chat:            vai,
		Calendar:        calendar.NewClient(cfg.Calendar.BaseURL, cfg.Calendar.APIKey),
		Leads:           leads.NewService(leads.NewPostgresRepo(db), leadRelay(cfg.Leads)),
		DemoAssistantID: cfg.VoiceAI.DemoAssistantID,
		WebhookSecret:   cfg.VoiceAI.WebhookSecret,
		Ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}

	// checkout stays unmounted until PayPal credentials exist
	if cfg.Payment.ClientID != "" {
		gw := payment.NewPayPal(cfg.Payment.BaseURL, cfg.Payment.ClientID, cfg.Payment.ClientSecret)
		h.Payment = payment.NewService(gw, clientRepo, catalog, ob, auditor)
	} else {
		log.Warn("paypal not configured; paid plans cannot check out")
	}

	return &app{handlers: h, sessions: sessions, hub: hub}, nil
}

// leadRelay returns nil when e-mail relay is not configured so leads are
// only stored.
func leadRelay(c config.LeadsConfig) leads.Relayer {
	r := leads.NewEmailRelay(c.BaseURL, c.ServiceID, c.TemplateID, c.PublicKey, c.AccessKey)
	if !r.Configured() {
		return nil
	}
	return r
}
