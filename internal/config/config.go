package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gymbody/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig          `yaml:"app"`
	Gyms       []models.GymConfig `yaml:"gyms"`
	Accounts   []AccountConfig    `yaml:"accounts"`
	Members    []MemberSeed       `yaml:"members"`
	Schedule   ScheduleConfig     `yaml:"schedule"`
	AI         AIConfig           `yaml:"ai"`
	Telegram   TelegramConfig     `yaml:"telegram"`
	Database   DatabaseConfig     `yaml:"database"`
	Backup     BackupConfig       `yaml:"backup"`
	Redis      RedisConfig        `yaml:"redis"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	Logging    LoggingConfig      `yaml:"logging"`
	API        APIConfig          `yaml:"api"`
	Exports    ExportConfig       `yaml:"exports"`
	Google     GoogleConfig       `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// AccountConfig is one entry of the static login table. Password is either plaintext
// or a bcrypt hash.
type AccountConfig struct {
	Username string      `yaml:"username"`
	Password string      `yaml:"password"`
	ID       string      `yaml:"id"`
	Role     models.Role `yaml:"role"`
	Name     string      `yaml:"name"`
	Avatar   string      `yaml:"avatar"`
	GymID    string      `yaml:"gym_id"`
	Credits  int         `yaml:"credits"`
}

// User returns the public profile of the account.
func (a AccountConfig) User() models.User {
	return models.User{
		ID:       a.ID,
		Username: a.Username,
		Role:     a.Role,
		Name:     a.Name,
		Avatar:   a.Avatar,
		GymID:    a.GymID,
		Credits:  a.Credits,
	}
}

// MemberSeed seeds the member directory on first start.
type MemberSeed struct {
	models.Member `yaml:",inline"`
	Balance       float64              `yaml:"balance"`
	PaymentStatus models.PaymentStatus `yaml:"payment_status"`
	DueDate       string               `yaml:"due_date"`
}

type ScheduleConfig struct {
	// Seed for the random initial booked counts; 0 uses the clock.
	Seed         int64         `yaml:"seed"`
	SafetyLimit  int           `yaml:"safety_limit"`
	RefreshEvery time.Duration `yaml:"refresh_every"`
}

type AIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	RateLimit  int    `yaml:"rate_limit_messages"`
	RateWindow int    `yaml:"rate_limit_window"`
	RenderHTML bool   `yaml:"render_html"`
}

type TelegramConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BotToken    string        `yaml:"bot_token"`
	StaffChatID int64         `yaml:"staff_chat_id"`
	Debug       bool          `yaml:"debug"`
	Timeout     time.Duration `yaml:"timeout"`
	QueueSize   int           `yaml:"queue_size"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
	// TokenTTL bounds how long a login token stays valid.
	TokenTTL time.Duration `yaml:"token_ttl"`
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

type ExportConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
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

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
	SheetName            string `yaml:"sheet_name"`
}

// SheetsEnabled reports whether the bookings sheet sync is configured.
func (g GoogleConfig) SheetsEnabled() bool {
	return g.CredentialsFile != "" && g.BookingSpreadSheetID != ""
}

func Load(configPath string) (*Config, error) {
	// .env is optional
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

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return errors.New("ai api key is required when ai is enabled")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if err := ValidateGyms(c.Gyms); err != nil {
		return err
	}
	return ValidateAccounts(c.Accounts, c.Gyms)
}

func ValidateGyms(gyms []models.GymConfig) error {
	if len(gyms) == 0 {
		return errors.New("at least one gym is required")
	}
	seen := make(map[string]bool)
	for _, g := range gyms {
		if g.ID == "" {
			return fmt.Errorf("gym '%s' has empty id", g.Name)
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate gym id found: %s", g.ID)
		}
		seen[g.ID] = true
		if _, err := time.LoadLocation(g.Timezone); err != nil {
			return fmt.Errorf("gym %s: invalid timezone %q: %w", g.ID, g.Timezone, err)
		}
		if g.ClosedDay != "" && g.ClosedDay != "none" {
			if _, ok := models.ParseWeekday(g.ClosedDay); !ok {
				return fmt.Errorf("gym %s: invalid closed_day %q", g.ID, g.ClosedDay)
			}
		}
		for _, h := range append(append([]int{}, g.WeekdayHours...), g.ShortDayHours...) {
			if h < 0 || h > 23 {
				return fmt.Errorf("gym %s: hour %d out of range", g.ID, h)
			}
		}
	}
	return nil
}

func ValidateAccounts(accounts []AccountConfig, gyms []models.GymConfig) error {
	known := make(map[string]bool, len(gyms))
	for _, g := range gyms {
		known[g.ID] = true
	}
	usernames := make(map[string]bool)
	for _, a := range accounts {
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("account %q: username and password are required", a.ID)
		}
		if usernames[a.Username] {
			return fmt.Errorf("duplicate username found: %s", a.Username)
		}
		usernames[a.Username] = true
		if !a.Role.Valid() {
			return fmt.Errorf("account %s: unknown role %q", a.Username, a.Role)
		}
		if !known[a.GymID] {
			return fmt.Errorf("account %s: unknown gym %q", a.Username, a.GymID)
		}
	}
	return nil
}

// Gym returns the tenant with the given id.
func (c *Config) Gym(id string) (models.GymConfig, bool) {
	for _, g := range c.Gyms {
		if g.ID == id {
			return g, true
		}
	}
	return models.GymConfig{}, false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "gymbody"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 12 * time.Hour
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 10 * time.Second
	}
	if c.Telegram.QueueSize == 0 {
		c.Telegram.QueueSize = 256
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}

	if c.Schedule.SafetyLimit == 0 {
		c.Schedule.SafetyLimit = models.DefaultWindowSafetyLimit
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.RateLimit == 0 {
		c.AI.RateLimit = models.RateLimitMessages
	}
	if c.AI.RateWindow == 0 {
		c.AI.RateWindow = models.RateLimitWindow
	}

	if len(c.Gyms) == 0 {
		c.Gyms = []models.GymConfig{{ID: models.DefaultGymID, Name: models.DefaultGymName}}
	}
	for i := range c.Gyms {
		ApplyGymDefaults(&c.Gyms[i])
	}

	if len(c.Accounts) == 0 {
		c.Accounts = DefaultAccounts()
	}
	for i := range c.Accounts {
		if c.Accounts[i].GymID == "" {
			c.Accounts[i].GymID = c.Gyms[0].ID
		}
		if c.Accounts[i].ID == "" {
			c.Accounts[i].ID = "u_" + c.Accounts[i].Username
		}
	}

	for i := range c.Members {
		if c.Members[i].GymID == "" {
			c.Members[i].GymID = c.Gyms[0].ID
		}
		if c.Members[i].Status == "" {
			c.Members[i].Status = models.MemberActive
		}
		if c.Members[i].PaymentStatus == "" {
			c.Members[i].PaymentStatus = models.PaymentPaid
		}
	}
}

// ApplyGymDefaults fills the business rules a tenant left unset.
func ApplyGymDefaults(g *models.GymConfig) {
	if g.Name == "" {
		g.Name = models.DefaultGymName
	}
	if g.Timezone == "" {
		g.Timezone = models.DefaultTimezone
	}
	if g.VisibilityThresholdMinutes == 0 {
		g.VisibilityThresholdMinutes = models.DefaultVisibilityThresholdMinutes
	}
	if g.WindowDays == 0 {
		g.WindowDays = models.DefaultWindowDays
	}
	if g.CancellationWindowHours == 0 {
		g.CancellationWindowHours = models.DefaultCancellationWindowHours
	}
	if g.ClosedDay == "" {
		g.ClosedDay = "sunday"
	}
	if g.ShortDay == "" {
		g.ShortDay = "saturday"
	}
	if len(g.WeekdayHours) == 0 {
		g.WeekdayHours = []int{6, 7, 8, 9, 10, 11, 12, 15, 16, 17, 18, 19}
	}
	if len(g.ShortDayHours) == 0 {
		g.ShortDayHours = []int{6, 7, 8, 9, 10, 11, 12}
	}
	if g.SemiPersonalCapacity == 0 {
		g.SemiPersonalCapacity = models.DefaultSemiPersonalCapacity
	}
	if g.OpenGymCapacity == 0 {
		g.OpenGymCapacity = models.DefaultOpenGymCapacity
	}
	if g.PrimaryColor == "" {
		g.PrimaryColor = "#ccff00"
	}
	if g.AccentColor == "" {
		g.AccentColor = "#111111"
	}
}

// DefaultAccounts is the demo login table used when the config lists none.
func DefaultAccounts() []AccountConfig {
	return []AccountConfig{
		{Username: "gmadmin", Password: "gmadmin", ID: "u_admin_1", Role: models.RoleAdmin, Name: "Gym Admin", Credits: 999},
		{Username: "gmog", Password: "gmog", ID: "u_og_1", Role: models.RoleClientOG, Name: "Alex (Open Gym)", Credits: 12},
		{Username: "gmsp", Password: "gmsp", ID: "u_sp_1", Role: models.RoleClientSP, Name: "Sarah (Semi-Personal)", Credits: 8},
	}
}
