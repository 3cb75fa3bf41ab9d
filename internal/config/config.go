package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env; a .env file in the working directory is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	VoiceAI      VoiceAIConfig
	Provisioning ProvisioningConfig
	Payment      PaymentConfig
	Calendar     CalendarConfig
	Leads        LeadsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// Pool sizing. Zero keeps the API defaults.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host string
	Port int
}

// Auth backends.
const (
	AuthBackendIdentity = "identity"
	AuthBackendUnified  = "unified"
)

type AuthConfig struct {
	// Backend selects who verifies credentials: the hosted identity provider or local users.
	Backend string

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	IdentityBaseURL string
	IdentityAPIKey  string

	// AdminEmails sign in with the admin role.
	AdminEmails []string
}

type VoiceAIConfig struct {
	BaseURL         string
	APIKey          string
	DemoAssistantID string
	WebhookSecret   string
	// ServerURL is the public webhook URL set on assistants we create.
	ServerURL string

	// EndTimeout bounds how long a live session waits for a terminal event after EndCall.
	EndTimeout time.Duration
}

// Provisioning modes.
const (
	ProvisioningModeStrict      = "strict"
	ProvisioningModePlaceholder = "placeholder"
)

// Agent creators.
const (
	CreatorVoiceAI = "voiceai"
	CreatorBackend = "backend"
)

type ProvisioningConfig struct {
	Mode    string
	Creator string

	// Backend* are only used when Creator == "backend".
	BackendBaseURL      string
	BackendAccessToken  string
	BackendRefreshToken string
}

type PaymentConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type CalendarConfig struct {
	BaseURL string
	APIKey  string
}

type LeadsConfig struct {
	BaseURL    string
	ServiceID  string
	TemplateID string
	PublicKey  string
	AccessKey  string
}

func Load() (Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	{
		n, err := optionalInt("DB_MAX_OPEN_CONNS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.MaxOpenConns = n
		n, err = optionalInt("DB_MAX_IDLE_CONNS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.MaxIdleConns = n
	}
	c.DB.ConnMaxLifetime = mustDuration("DB_CONN_MAX_LIFETIME")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.Backend = strings.TrimSpace(os.Getenv("AUTH_BACKEND"))
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.AdminEmails = splitList(os.Getenv("AUTH_ADMIN_EMAILS"))
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.IdentityBaseURL = strings.TrimSpace(os.Getenv("IDENTITY_BASE_URL"))
	c.Auth.IdentityAPIKey = os.Getenv("IDENTITY_API_KEY")

	c.VoiceAI.BaseURL = strings.TrimSpace(os.Getenv("VOICEAI_BASE_URL"))
	c.VoiceAI.APIKey = os.Getenv("VOICEAI_API_KEY")
	c.VoiceAI.DemoAssistantID = strings.TrimSpace(os.Getenv("VOICEAI_DEMO_ASSISTANT_ID"))
	c.VoiceAI.WebhookSecret = os.Getenv("VOICEAI_WEBHOOK_SECRET")
	c.VoiceAI.ServerURL = strings.TrimSpace(os.Getenv("VOICEAI_SERVER_URL"))
	c.VoiceAI.EndTimeout = mustDuration("VOICE_END_TIMEOUT")

	c.Provisioning.Mode = strings.TrimSpace(os.Getenv("PROVISIONING_MODE"))
	c.Provisioning.Creator = strings.TrimSpace(os.Getenv("PROVISIONING_CREATOR"))
	c.Provisioning.BackendBaseURL = strings.TrimSpace(os.Getenv("PROVISIONING_BACKEND_URL"))
	c.Provisioning.BackendAccessToken = os.Getenv("PROVISIONING_BACKEND_ACCESS_TOKEN")
	c.Provisioning.BackendRefreshToken = os.Getenv("PROVISIONING_BACKEND_REFRESH_TOKEN")

	c.Payment.BaseURL = strings.TrimSpace(os.Getenv("PAYPAL_BASE_URL"))
	c.Payment.ClientID = strings.TrimSpace(os.Getenv("PAYPAL_CLIENT_ID"))
	c.Payment.ClientSecret = os.Getenv("PAYPAL_CLIENT_SECRET")

	c.Calendar.BaseURL = strings.TrimSpace(os.Getenv("CALENDAR_BASE_URL"))
	c.Calendar.APIKey = os.Getenv("CALENDAR_API_KEY")

	c.Leads.BaseURL = strings.TrimSpace(os.Getenv("EMAILJS_BASE_URL"))
	c.Leads.ServiceID = strings.TrimSpace(os.Getenv("EMAILJS_SERVICE_ID"))
	c.Leads.TemplateID = strings.TrimSpace(os.Getenv("EMAILJS_TEMPLATE_ID"))
	c.Leads.PublicKey = strings.TrimSpace(os.Getenv("EMAILJS_PUBLIC_KEY"))
	c.Leads.AccessKey = os.Getenv("EMAILJS_ACCESS_KEY")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	errs = append(errs, c.validateAuth()...)
	errs = append(errs, c.validateVoiceAI()...)
	errs = append(errs, c.validateProvisioning()...)

	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api-m.sandbox.paypal.com"
		if c.IsProduction() {
			c.Payment.BaseURL = "https://api-m.paypal.com"
		}
	}
	if c.Calendar.BaseURL == "" {
		c.Calendar.BaseURL = "https://www.googleapis.com/calendar/v3"
	}
	if c.Leads.BaseURL == "" {
		c.Leads.BaseURL = "https://api.emailjs.com/api/v1.0"
	}

	return joinErrors(errs)
}

func (c *Config) validateAuth() []error {
	var errs []error

	switch c.Auth.Backend {
	case "":
		c.Auth.Backend = AuthBackendUnified
	case AuthBackendUnified:
	case AuthBackendIdentity:
		if c.Auth.IdentityAPIKey == "" {
			errs = append(errs, errors.New("IDENTITY_API_KEY is required when AUTH_BACKEND=identity"))
		}
		if c.Auth.IdentityBaseURL == "" {
			c.Auth.IdentityBaseURL = "https://identitytoolkit.googleapis.com/v1"
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_BACKEND must be one of identity, unified, got %q", c.Auth.Backend))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	return errs
}

func (c *Config) validateVoiceAI() []error {
	var errs []error
	if c.VoiceAI.APIKey == "" {
		errs = append(errs, errors.New("VOICEAI_API_KEY is required"))
	}
	if c.VoiceAI.BaseURL == "" {
		c.VoiceAI.BaseURL = "https://api.vapi.ai"
	}
	if c.VoiceAI.EndTimeout <= 0 {
		c.VoiceAI.EndTimeout = 10 * time.Second
	}
	if c.IsProduction() && c.VoiceAI.WebhookSecret == "" {
		errs = append(errs, errors.New("VOICEAI_WEBHOOK_SECRET is required in production"))
	}
	return errs
}

func (c *Config) validateProvisioning() []error {
	var errs []error

	switch c.Provisioning.Mode {
	case "":
		c.Provisioning.Mode = ProvisioningModeStrict
	case ProvisioningModeStrict, ProvisioningModePlaceholder:
	default:
		errs = append(errs, fmt.Errorf("PROVISIONING_MODE must be one of strict, placeholder, got %q", c.Provisioning.Mode))
	}

	switch c.Provisioning.Creator {
	case "":
		c.Provisioning.Creator = CreatorVoiceAI
	case CreatorVoiceAI:
	case CreatorBackend:
		if c.Provisioning.BackendBaseURL == "" {
			errs = append(errs, errors.New("PROVISIONING_BACKEND_URL is required when PROVISIONING_CREATOR=backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROVISIONING_CREATOR must be one of voiceai, backend, got %q", c.Provisioning.Creator))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
