package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/promptshield/promptshield/pkg/catalog"
	"github.com/promptshield/promptshield/pkg/types"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Guardrail GuardrailConfig `mapstructure:"guardrail"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type GuardrailConfig struct {
	StrictMode     bool   `mapstructure:"strict_mode"`
	SecurityLevel  string `mapstructure:"security_level"`
	RedactOutputs  bool   `mapstructure:"redact_outputs"`
	MaxInputLength int    `mapstructure:"max_input_length"`
}

type RulesConfig struct {
	Custom []catalog.CustomRule `mapstructure:"custom"`
}

type AlertingConfig struct {
	Workers   int               `mapstructure:"workers"`
	QueueSize int               `mapstructure:"queue_size"`
	Rules     []AlertRuleConfig `mapstructure:"rules"`
}

type AlertRuleConfig struct {
	Name        string            `mapstructure:"name"`
	Description string            `mapstructure:"description"`
	Metric      string            `mapstructure:"metric"`
	Comparison  string            `mapstructure:"comparison"`
	Threshold   float64           `mapstructure:"threshold"`
	Severity    string            `mapstructure:"severity"`
	Cooldown    time.Duration     `mapstructure:"cooldown"`
	MinDuration time.Duration     `mapstructure:"min_duration"`
	Labels      map[string]string `mapstructure:"labels"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return err
	}
	setDefaultValues()
	return validate(&globalConfig)
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Env-only operation is allowed.
			return nil
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Server.Host == "" {
		globalConfig.Server.Host = "0.0.0.0"
	}
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8080
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if globalConfig.Guardrail.SecurityLevel == "" {
		globalConfig.Guardrail.SecurityLevel = "medium"
	}
	if globalConfig.Alerting.Workers == 0 {
		globalConfig.Alerting.Workers = 4
	}
	if globalConfig.Alerting.QueueSize == 0 {
		globalConfig.Alerting.QueueSize = 1000
	}
	if globalConfig.Logging.Level == "" {
		globalConfig.Logging.Level = "info"
	}
}

func validate(cfg *Config) error {
	if _, err := types.ParseSecurityLevel(cfg.Guardrail.SecurityLevel); err != nil {
		return &types.ConfigurationError{Component: "guardrail", Err: err}
	}
	for _, rc := range cfg.Alerting.Rules {
		if _, err := rc.Build(); err != nil {
			return err
		}
	}
	return nil
}

// Build converts a decoded rule block into an AlertRule, validating every
// field so a bad config aborts startup rather than surfacing at evaluation.
func (rc AlertRuleConfig) Build() (types.AlertRule, error) {
	severity, err := types.ParseAlertSeverity(rc.Severity)
	if err != nil {
		return types.AlertRule{}, &types.ConfigurationError{Component: "alerting", Err: err}
	}
	cmp := types.Comparison(rc.Comparison)
	if !cmp.Valid() {
		return types.AlertRule{}, &types.ConfigurationError{
			Component: "alerting",
			Err:       fmt.Errorf("rule %q: unknown comparison %q", rc.Name, rc.Comparison),
		}
	}
	return types.AlertRule{
		Name:        rc.Name,
		Description: rc.Description,
		MetricName:  rc.Metric,
		Comparison:  cmp,
		Threshold:   rc.Threshold,
		Severity:    severity,
		Cooldown:    rc.Cooldown,
		MinDuration: rc.MinDuration,
		Labels:      rc.Labels,
	}, nil
}

// ParsedSecurityLevel returns the parsed level. Load has already validated it.
func (g GuardrailConfig) ParsedSecurityLevel() types.SecurityLevel {
	level, _ := types.ParseSecurityLevel(g.SecurityLevel)
	return level
}

func GetConfig() *Config {
	return &globalConfig
}
