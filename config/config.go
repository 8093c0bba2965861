package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration lets yaml files carry values such as "24h" or "10m".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Config is loaded once at process start and passed by value afterwards.
type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		Mode      string `yaml:"mode"`
		WebOrigin string `yaml:"web_origin"`
	} `yaml:"server"`

	Database struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		Name       string `yaml:"name"`
		SSLMode    string `yaml:"sslmode"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		GoogleClientID string   `yaml:"google_client_id"`
		AdminEmails    []string `yaml:"admin_emails"`
		AllowedDomains []string `yaml:"allowed_domains"`
		JWTSecret      string   `yaml:"jwt_secret"`
		JWTIssuer      string   `yaml:"jwt_issuer"`
		SessionTTL     Duration `yaml:"session_ttl"`
		SeenThrottle   Duration `yaml:"seen_throttle"`
	} `yaml:"auth"`

	WebAuthn struct {
		RPID          string   `yaml:"rp_id"`
		RPDisplayName string   `yaml:"rp_display_name"`
		RPOrigins     []string `yaml:"rp_origins"`
		CeremonyTTL   Duration `yaml:"ceremony_ttl"`
	} `yaml:"webauthn"`

	Storage struct {
		Path           string   `yaml:"path"`
		BaseURL        string   `yaml:"base_url"`
		MaxUploadBytes int64    `yaml:"max_upload_bytes"`
		AllowedTypes   []string `yaml:"allowed_types"`
	} `yaml:"storage"`

	Mail struct {
		MailgunDomain string `yaml:"mailgun_domain"`
		MailgunAPIKey string `yaml:"mailgun_api_key"`
		From          string `yaml:"from"`
	} `yaml:"mail"`

	Events struct {
		AMQPURL  string `yaml:"amqp_url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"events"`

	Notify struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"notify"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load applies defaults, then the yaml file at path (if present), then
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(c *Config) {
	c.Server.Port = "3001"
	c.Server.Mode = "development"
	c.Server.WebOrigin = "http://localhost:5173"

	c.Database.Driver = "postgres"
	c.Database.SQLitePath = "projectors.db"
	c.Database.Host = "127.0.0.1"
	c.Database.Port = "5432"
	c.Database.User = "postgres"
	c.Database.Password = "postgres"
	c.Database.Name = "projectors"
	c.Database.SSLMode = "disable"

	c.Redis.Addr = "127.0.0.1:6379"

	c.Auth.AllowedDomains = []string{"unach.mx"}
	c.Auth.JWTIssuer = "projector-reservation"
	c.Auth.SessionTTL = Duration{24 * time.Hour}
	c.Auth.SeenThrottle = Duration{5 * time.Minute}

	c.WebAuthn.RPID = "localhost"
	c.WebAuthn.RPDisplayName = "Projector Reservations"
	c.WebAuthn.RPOrigins = []string{"http://localhost:5173"}
	c.WebAuthn.CeremonyTTL = Duration{10 * time.Minute}

	c.Storage.Path = "uploads"
	c.Storage.BaseURL = "/uploads"
	c.Storage.MaxUploadBytes = 5 << 20
	c.Storage.AllowedTypes = []string{"application/pdf", "image/png", "image/jpeg"}

	c.Events.Exchange = "notifications"

	c.Notify.Workers = 3
	c.Notify.QueueSize = 100

	c.Logging.Level = "info"
	c.Logging.Format = "json"
}

func applyEnv(c *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitCSV(v)
		}
	}
	dur := func(key string, dst *Duration) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		dst.Duration = d
		return nil
	}
	integer := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Server.Port)
	str("SERVER_MODE", &c.Server.Mode)
	str("WEB_ORIGIN", &c.Server.WebOrigin)

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_SQLITE_PATH", &c.Database.SQLitePath)
	str("DB_HOST", &c.Database.Host)
	str("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	if err := integer("REDIS_DB", &c.Redis.DB); err != nil {
		return err
	}

	str("GOOGLE_CLIENT_ID", &c.Auth.GoogleClientID)
	list("ADMIN_EMAILS", &c.Auth.AdminEmails)
	list("ALLOWED_EMAIL_DOMAINS", &c.Auth.AllowedDomains)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("JWT_ISSUER", &c.Auth.JWTIssuer)
	if err := dur("SESSION_TTL", &c.Auth.SessionTTL); err != nil {
		return err
	}
	if err := dur("SEEN_THROTTLE", &c.Auth.SeenThrottle); err != nil {
		return err
	}

	str("RP_ID", &c.WebAuthn.RPID)
	str("RP_DISPLAY_NAME", &c.WebAuthn.RPDisplayName)
	list("RP_ORIGINS", &c.WebAuthn.RPOrigins)
	if err := dur("WEBAUTHN_CEREMONY_TTL", &c.WebAuthn.CeremonyTTL); err != nil {
		return err
	}

	str("STORAGE_PATH", &c.Storage.Path)
	str("STORAGE_BASE_URL", &c.Storage.BaseURL)
	list("STORAGE_ALLOWED_TYPES", &c.Storage.AllowedTypes)
	if v := os.Getenv("STORAGE_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STORAGE_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Storage.MaxUploadBytes = n
	}

	str("MAILGUN_DOMAIN", &c.Mail.MailgunDomain)
	str("MAILGUN_API_KEY", &c.Mail.MailgunAPIKey)
	str("MAIL_FROM", &c.Mail.From)

	str("RABBITMQ_CONNSTRING", &c.Events.AMQPURL)
	str("EVENTS_EXCHANGE", &c.Events.Exchange)

	if err := integer("NOTIFY_WORKERS", &c.Notify.Workers); err != nil {
		return err
	}
	if err := integer("NOTIFY_QUEUE_SIZE", &c.Notify.QueueSize); err != nil {
		return err
	}

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if c.Auth.GoogleClientID == "" {
		return errors.New("google client id is required")
	}
	if len(c.Auth.AllowedDomains) == 0 && len(c.Auth.AdminEmails) == 0 {
		return errors.New("at least one allowed email domain or admin email is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.SessionTTL.Duration <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	if c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0 {
		return errors.New("notify workers and queue size must be positive")
	}
	if (c.Mail.MailgunDomain == "") != (c.Mail.MailgunAPIKey == "") {
		return errors.New("mailgun domain and api key must be set together")
	}
	for i, e := range c.Auth.AdminEmails {
		c.Auth.AdminEmails[i] = strings.ToLower(strings.TrimSpace(e))
	}
	for i, d := range c.Auth.AllowedDomains {
		c.Auth.AllowedDomains[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
	}
	return nil
}

// PostgresDSN builds the gorm postgres DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Database.Host,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.Port,
		c.Database.SSLMode,
	)
}

func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.WebOrigin, "https://")
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
