package config

import (
	"fmt"
	"os"
	"strconv"
)

// maxBacklogTenants bounds the numbered BACKLOG_*_1..N credential scan.
const maxBacklogTenants = 10

// Config is the full application configuration, built once at process start
// and injected into every component. Credentials come from environment
// variables; an optional reqflow.yaml overlays holidays and defaults.
type Config struct {
	Jira    JiraConfig
	Notion  NotionConfig
	Backlog BacklogConfig
	GitHub  GitHubConfig
	Slack   SlackConfig
	LLM     LLMConfig
	Notify  NotifyConfig
	Server  ServerConfig
}

// JiraConfig holds credentials for the Jira REST API (basic auth).
type JiraConfig struct {
	BaseURL   string
	UserEmail string
	APIToken  string
}

// Configured reports whether the Jira source can be used.
func (c JiraConfig) Configured() bool {
	return c.BaseURL != "" && c.UserEmail != "" && c.APIToken != ""
}

// NotionConfig holds the Notion integration token (bearer auth).
type NotionConfig struct {
	APIToken string
}

// Configured reports whether the Notion source can be used.
func (c NotionConfig) Configured() bool {
	return c.APIToken != ""
}

// BacklogTenant is one configured (space, credential) pair. The Backlog
// connector iterates tenants in configuration order.
type BacklogTenant struct {
	SpaceID string
	APIKey  string
}

// BaseURL returns the API base URL for this tenant's space.
func (t BacklogTenant) BaseURL() string {
	return fmt.Sprintf("https://%s.backlog.jp", t.SpaceID)
}

// Complete reports whether both halves of the credential pair are present.
func (t BacklogTenant) Complete() bool {
	return t.SpaceID != "" && t.APIKey != ""
}

// BacklogConfig holds the ordered tenant list.
type BacklogConfig struct {
	Tenants []BacklogTenant
}

// Configured reports whether at least one complete tenant exists.
func (c BacklogConfig) Configured() bool {
	for _, t := range c.Tenants {
		if t.Complete() {
			return true
		}
	}
	return false
}

// GitHubConfig holds the token used to create issues.
type GitHubConfig struct {
	Token string
}

// SlackConfig holds the chat sink credentials.
type SlackConfig struct {
	BotToken         string
	DefaultChannelID string
}

// Configured reports whether the chat sink can be used.
func (c SlackConfig) Configured() bool {
	return c.BotToken != "" && c.DefaultChannelID != ""
}

// LLMConfig holds generation provider settings.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
}

// NotifyConfig holds urgent-item notification defaults.
type NotifyConfig struct {
	DaysThreshold      int      `yaml:"days_threshold"`
	SkipWeekendHoliday bool     `yaml:"skip_weekend_holiday"`
	Holidays           []string `yaml:"holidays"` // MM-DD
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// FromEnv builds a Config from environment variables.
func FromEnv() *Config {
	cfg := &Config{
		Jira: JiraConfig{
			BaseURL:   os.Getenv("JIRA_BASE_URL"),
			UserEmail: os.Getenv("JIRA_USER_EMAIL"),
			APIToken:  os.Getenv("JIRA_API_TOKEN"),
		},
		Notion: NotionConfig{
			APIToken: os.Getenv("NOTION_API_TOKEN"),
		},
		Backlog: BacklogConfig{
			Tenants: backlogTenantsFromEnv(),
		},
		GitHub: GitHubConfig{
			Token: os.Getenv("GITHUB_TOKEN"),
		},
		Slack: SlackConfig{
			BotToken:         os.Getenv("SLACK_BOT_TOKEN"),
			DefaultChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		LLM: LLMConfig{
			Provider: os.Getenv("LLM_PROVIDER"),
			Model:    os.Getenv("LLM_MODEL"),
			APIKey:   os.Getenv("GOOGLE_API_KEY"),
			Region:   os.Getenv("GOOGLE_CLOUD_LOCATION"),
		},
		Notify: NotifyConfig{
			DaysThreshold:      3,
			SkipWeekendHoliday: true,
		},
		Server: ServerConfig{
			Port: os.Getenv("PORT"),
		},
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("NOTIFY_DAYS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notify.DaysThreshold = n
		}
	}

	applyDefaults(cfg)
	return cfg
}

// backlogTenantsFromEnv reads BACKLOG_SPACE_ID/BACKLOG_API_KEY plus the
// numbered _1.._10 variants into an ordered tenant list. Pairs where both
// halves are empty are skipped; half-configured pairs are kept so Validate
// can flag them.
func backlogTenantsFromEnv() []BacklogTenant {
	var tenants []BacklogTenant

	suffixes := []string{""}
	for i := 1; i <= maxBacklogTenants; i++ {
		suffixes = append(suffixes, fmt.Sprintf("_%d", i))
	}

	for _, sfx := range suffixes {
		t := BacklogTenant{
			SpaceID: os.Getenv("BACKLOG_SPACE_ID" + sfx),
			APIKey:  os.Getenv("BACKLOG_API_KEY" + sfx),
		}
		if t.SpaceID == "" && t.APIKey == "" {
			continue
		}
		tenants = append(tenants, t)
	}

	return tenants
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.Model = "gpt-4o-mini"
		default:
			cfg.LLM.Model = "gemini-1.5-flash"
		}
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if len(cfg.Notify.Holidays) == 0 {
		cfg.Notify.Holidays = defaultHolidays()
	}
}

// defaultHolidays returns the fixed-date Japanese holidays used by the
// weekday gate. Movable holidays (equinoxes, Monday holidays) are not
// covered; override via reqflow.yaml when they matter.
func defaultHolidays() []string {
	return []string{
		"01-01", "01-02", "01-03",
		"02-11", "02-23",
		"04-29",
		"05-03", "05-04", "05-05",
		"08-11",
		"11-03", "11-23",
		"12-29", "12-30", "12-31",
	}
}
