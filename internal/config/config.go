package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // business timezone must resolve in minimal containers

	"rungroj/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreBackendSQLite = "sqlite"
	StoreBackendRemote = "remote"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Payment    PaymentConfig    `yaml:"payment"`
	Branches   []models.Branch  `yaml:"branches"`
	Booking    BookingConfig    `yaml:"booking"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Mail       MailConfig       `yaml:"mail"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type APIConfig struct {
	HTTP        APIHTTPConfig      `yaml:"http"`
	GRPC        APIGRPCConfig      `yaml:"grpc"`
	RateLimit   APIRateLimitConfig `yaml:"rate_limit"`
	CORSOrigins []string           `yaml:"cors_origins"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type StoreConfig struct {
	Backend         string        `yaml:"backend"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	SQLitePath      string        `yaml:"sqlite_path"`
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl"`
	Timeout         time.Duration `yaml:"timeout"`
	Backup          BackupConfig  `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	LoginPath string `yaml:"login_path"`
}

type GeocodeConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Language  string        `yaml:"language"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	PromptPayID string   `yaml:"promptpay_id"`
	QRBaseURL   string   `yaml:"qr_base_url"`
	LineURL     string   `yaml:"line_url"`
	FacebookURL string   `yaml:"facebook_url"`
	Phones      []string `yaml:"phones"`
}

type BookingConfig struct {
	Timezone string        `yaml:"timezone"`
	DraftTTL time.Duration `yaml:"draft_ttl"`
}

type TelegramConfig struct {
	BotToken     string        `yaml:"bot_token"`
	AdminChatIDs []int64       `yaml:"admin_chat_ids"`
	Debug        bool          `yaml:"debug"`
	Timeout      time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile          string `yaml:"credentials_file"`
	ReservationSpreadsheetID string `yaml:"reservations_spreadsheet_id"`
	SheetName                string `yaml:"sheet_name"`
}

type MailConfig struct {
	Port         int    `yaml:"port"`
	SendGridKey  string `yaml:"sendgrid_api_key"`
	FromEmail    string `yaml:"from_email"`
	FromName     string `yaml:"from_name"`
	DashboardURL string `yaml:"dashboard_url"`
	CORSOrigin   string `yaml:"cors_origin"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

// Load reads the YAML config at configPath after loading .env when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadMail reads the config for the mail relay. The YAML file is optional;
// SENDGRID_API_KEY, SENDGRID_FROM_EMAIL and PORT override the mail section.
func LoadMail(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var config Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
				return nil, err
			}
		}
	}

	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		config.Mail.SendGridKey = v
	}
	if v := os.Getenv("SENDGRID_FROM_EMAIL"); v != "" {
		config.Mail.FromEmail = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		config.Mail.Port = port
	}

	config.applyDefaults()
	if config.Mail.SendGridKey == "" || config.Mail.FromEmail == "" {
		return nil, errors.New("config validation failed: mail.sendgrid_api_key and mail.from_email are required")
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	case StoreBackendRemote:
		if c.Store.BaseURL == "" {
			return errors.New("store.base_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}

	return ValidateBranches(c.Branches)
}

// ValidateBranches checks ids are unique, presets carry a location and at
// most one custom branch exists.
func ValidateBranches(branches []models.Branch) error {
	seen := make(map[string]bool)
	customCount := 0
	for _, b := range branches {
		if b.ID == "" {
			return fmt.Errorf("branch '%s' has empty id", b.Name)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate branch id found: %s", b.ID)
		}
		seen[b.ID] = true

		if b.IsCustom() {
			customCount++
			continue
		}
		if b.Location == "" {
			return fmt.Errorf("preset branch %s has no location", b.ID)
		}
	}
	if customCount > 1 {
		return errors.New("only one custom branch is allowed")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "rungroj-carrental"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendSQLite
	}
	if c.Store.Backend == StoreBackendSQLite && c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/rungroj.db"
	}
	if c.Store.CatalogCacheTTL == 0 {
		c.Store.CatalogCacheTTL = models.DefaultCatalogCacheTTL
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 10 * time.Second
	}
	if c.Store.Backup.Enabled && c.Store.Backup.StoragePath == "" {
		c.Store.Backup.StoragePath = "data/backups"
	}

	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/login"
	}

	if c.Geocode.BaseURL == "" {
		c.Geocode.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if c.Geocode.Language == "" {
		c.Geocode.Language = "en"
	}
	if c.Geocode.UserAgent == "" {
		c.Geocode.UserAgent = c.App.Name
	}
	if c.Geocode.Timeout == 0 {
		c.Geocode.Timeout = 10 * time.Second
	}

	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 10 * time.Second
	}

	if c.Payment.QRBaseURL == "" {
		c.Payment.QRBaseURL = "https://promptpay.io"
	}
	if c.Payment.PromptPayID == "" {
		c.Payment.PromptPayID = "0963638519"
	}
	if c.Payment.LineURL == "" {
		c.Payment.LineURL = "https://line.me/R/ti/p/@rungroj"
	}
	if c.Payment.FacebookURL == "" {
		c.Payment.FacebookURL = "https://m.me/553199731216723"
	}
	if len(c.Payment.Phones) == 0 {
		c.Payment.Phones = []string{"086-634-8619", "096-363-8519"}
	}

	if len(c.Branches) == 0 {
		c.Branches = models.DefaultBranches()
	}

	if c.Booking.Timezone == "" {
		c.Booking.Timezone = models.DefaultTimezone
	}
	if c.Booking.DraftTTL == 0 {
		c.Booking.DraftTTL = models.DefaultDraftTTL
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Reservations"
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 5000
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "Rungroj CarRental"
	}
	if c.Mail.CORSOrigin == "" {
		c.Mail.CORSOrigin = "http://localhost:5173"
	}
	if c.Mail.DashboardURL == "" {
		c.Mail.DashboardURL = c.Mail.CORSOrigin + "/profile"
	}
}

// Location returns the business timezone, falling back to UTC.
func (c BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
