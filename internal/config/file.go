package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// fileConfig is the subset of settings that may be overridden from
// reqflow.yaml. Credentials stay in the environment; the file carries the
// holiday calendar and behavioral defaults.
type fileConfig struct {
	LLM    LLMConfig    `yaml:"llm"`
	Notify NotifyConfig `yaml:"notify"`
	Server ServerConfig `yaml:"server"`
}

// Load builds the configuration from the environment and, when a config
// file exists at path (or a default location), overlays it.
func Load(path string) (*Config, error) {
	cfg := FromEnv()

	path = FindConfigPath(path)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.LLM.Provider != "" {
		cfg.LLM.Provider = fc.LLM.Provider
	}
	if fc.LLM.Model != "" {
		cfg.LLM.Model = fc.LLM.Model
	}
	if fc.LLM.APIKey != "" {
		cfg.LLM.APIKey = expandEnvVars(fc.LLM.APIKey)
	}
	if fc.LLM.Region != "" {
		cfg.LLM.Region = fc.LLM.Region
	}
	if fc.Notify.DaysThreshold != 0 {
		cfg.Notify.DaysThreshold = fc.Notify.DaysThreshold
	}
	if len(fc.Notify.Holidays) > 0 {
		cfg.Notify.Holidays = fc.Notify.Holidays
	}
	if fc.Server.Port != "" {
		cfg.Server.Port = fc.Server.Port
	}

	return cfg, nil
}

// FindConfigPath looks for a config file in common locations
func FindConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	paths := []string{
		"reqflow.yaml",
		"reqflow.yml",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homePath := filepath.Join(home, ".config", "reqflow", "config.yaml")
		if _, err := os.Stat(homePath); err == nil {
			return homePath
		}
	}

	return ""
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // Keep original if env var not set
	})
}
