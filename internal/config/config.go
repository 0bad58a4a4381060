package config

import (
	"errors"
	"fmt"
	"os"

	"boothnik/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig            `yaml:"app"`
	Database   DatabaseConfig       `yaml:"database"`
	Redis      RedisConfig          `yaml:"redis"`
	Monitoring MonitoringConfig     `yaml:"monitoring"`
	Logging    LoggingConfig        `yaml:"logging"`
	API        APIConfig            `yaml:"api"`
	Booking    BookingConfig        `yaml:"booking"`
	Hours      models.BusinessHours `yaml:"business_hours"`
	Colleges   []CollegeConfig      `yaml:"colleges"`
	Identity   IdentityConfig       `yaml:"identity"`
	Notify     NotifyConfig         `yaml:"notify"`
	Google     GoogleConfig         `yaml:"google"`
	Exports    ExportConfig         `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	HorizonDays        int `yaml:"horizon_days"`
	ProposalTTLSeconds int `yaml:"proposal_ttl_seconds"`
}

type CollegeConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type IdentityConfig struct {
	Pattern          string `yaml:"pattern"`
	CollegeCharIndex int    `yaml:"college_char_index"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	ScheduleSpreadsheetID string `yaml:"schedule_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен, но если есть - подхватываем
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Hours.StartHour < 0 || c.Hours.EndHour > 24 || c.Hours.StartHour >= c.Hours.EndHour {
		return fmt.Errorf("invalid business hours %d..%d", c.Hours.StartHour, c.Hours.EndHour)
	}
	if c.Hours.SlotMinutes <= 0 || 60%c.Hours.SlotMinutes != 0 {
		return fmt.Errorf("slot_minutes must divide 60 evenly, got %d", c.Hours.SlotMinutes)
	}

	if len(c.Colleges) == 0 {
		return errors.New("at least one college is required")
	}
	seen := make(map[string]bool)
	for _, col := range c.Colleges {
		if col.Code == "" {
			return fmt.Errorf("college %q has empty code", col.Name)
		}
		if seen[col.Code] {
			return fmt.Errorf("duplicate college code: %s", col.Code)
		}
		seen[col.Code] = true
	}

	return nil
}

// ValidateBooths checks the booth catalog against the configured colleges.
func (c *Config) ValidateBooths(booths []models.Booth) error {
	if len(booths) == 0 {
		return errors.New("booth catalog is empty")
	}

	colleges := make(map[string]bool, len(c.Colleges))
	for _, col := range c.Colleges {
		colleges[col.Code] = true
	}

	boothIDs := make(map[int64]bool, len(booths))
	for _, booth := range booths {
		if booth.ID == 0 {
			return fmt.Errorf("booth %q has invalid ID 0", booth.Name)
		}
		if boothIDs[booth.ID] {
			return fmt.Errorf("duplicate booth ID found: %d", booth.ID)
		}
		boothIDs[booth.ID] = true

		if booth.College != models.CollegeCommon && !colleges[booth.College] {
			return fmt.Errorf("booth %d references unknown college %q", booth.ID, booth.College)
		}
	}
	return nil
}

// CollegeMap returns the colleges keyed by code.
func (c *Config) CollegeMap() map[string]CollegeConfig {
	m := make(map[string]CollegeConfig, len(c.Colleges))
	for _, col := range c.Colleges {
		m[col.Code] = col
	}
	return m
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Hours.StartHour == 0 && c.Hours.EndHour == 0 {
		c.Hours.StartHour = 9
		c.Hours.EndHour = 17
	}
	if c.Hours.SlotMinutes == 0 {
		c.Hours.SlotMinutes = 10
	}

	if c.Booking.HorizonDays == 0 {
		c.Booking.HorizonDays = models.DefaultHorizonDays
	}
	if c.Booking.ProposalTTLSeconds == 0 {
		c.Booking.ProposalTTLSeconds = models.DefaultProposalTTL
	}
}
