package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration settings for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Database    DatabaseConfig `mapstructure:"database"`
	Bridge      BridgeConfig   `mapstructure:"bridge"`
	P2P         P2PConfig      `mapstructure:"p2p"`
	Security    SecurityConfig `mapstructure:"security"`
	Maintenance MaintConfig    `mapstructure:"maintenance"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxConns     int           `mapstructure:"max_conns"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	Embedded     bool          `mapstructure:"embedded"`
	EmbeddedPort int           `mapstructure:"embedded_port"`
	DataDir      string        `mapstructure:"data_dir"`
}

// BridgeConfig holds the consensus parameters of the bridge security layer
type BridgeConfig struct {
	TotalValidators        int     `mapstructure:"total_validators"`
	RequiredSignatures     int     `mapstructure:"required_signatures"`
	ChallengePeriodHours   int     `mapstructure:"challenge_period_hours"`
	LargeTransferThreshold float64 `mapstructure:"large_transfer_threshold"`
}

// P2PConfig holds validator network related configuration
type P2PConfig struct {
	Port             int           `mapstructure:"port"`
	BootstrapPeers   []string      `mapstructure:"bootstrap_peers"`
	SignatureTimeout time.Duration `mapstructure:"signature_timeout"`
	Topics           []string      `mapstructure:"topics"`
	EnableMDNS       bool          `mapstructure:"enable_mdns"`
	EnableDHT        bool          `mapstructure:"enable_dht"`
}

// SecurityConfig holds security related configuration
type SecurityConfig struct {
	MinSignerReputation float64       `mapstructure:"min_signer_reputation"`
	ReputationFloor     float64       `mapstructure:"reputation_floor"`
	SlashPenalty        float64       `mapstructure:"slash_penalty"`
	ChallengerPenalty   float64       `mapstructure:"challenger_penalty"`
	KeyFile             string        `mapstructure:"key_file"`
	TokenExpiry         time.Duration `mapstructure:"token_expiry"`
}

// MaintConfig holds settings for the recurring maintenance jobs
type MaintConfig struct {
	DecaySchedule   string        `mapstructure:"decay_schedule"`
	DecayInactivity time.Duration `mapstructure:"decay_inactivity"`
	DecayPenalty    float64       `mapstructure:"decay_penalty"`
	SyncSchedule    string        `mapstructure:"sync_schedule"`
	StatsSchedule   string        `mapstructure:"stats_schedule"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default configuration values
	setDefaults(v)

	// Read the config file
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	// Override with environment variables
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Parse the configuration
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Bridge consensus defaults: 14 of 21 is the 2/3+1 supermajority
	v.SetDefault("bridge.total_validators", 21)
	v.SetDefault("bridge.required_signatures", 14)
	v.SetDefault("bridge.challenge_period_hours", 24)
	v.SetDefault("bridge.large_transfer_threshold", 100000.0)

	// P2P defaults
	v.SetDefault("p2p.port", 9000)
	v.SetDefault("p2p.signature_timeout", "20s")
	v.SetDefault("p2p.topics", []string{"signatures", "challenges"})
	v.SetDefault("p2p.enable_mdns", true)
	v.SetDefault("p2p.enable_dht", false)

	// Security defaults
	v.SetDefault("security.min_signer_reputation", 50.0)
	v.SetDefault("security.reputation_floor", 30.0)
	v.SetDefault("security.slash_penalty", 50.0)
	v.SetDefault("security.challenger_penalty", 5.0)
	v.SetDefault("security.token_expiry", "24h")

	// Maintenance defaults
	v.SetDefault("maintenance.decay_schedule", "0 0 * * * *")
	v.SetDefault("maintenance.decay_inactivity", "72h")
	v.SetDefault("maintenance.decay_penalty", 1.0)
	v.SetDefault("maintenance.sync_schedule", "0 */5 * * * *")
	v.SetDefault("maintenance.stats_schedule", "0 */15 * * * *")
	v.SetDefault("maintenance.max_concurrent", 2)

	// Database defaults
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.timeout", "30s")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.embedded", false)
	v.SetDefault("database.embedded_port", 5433)
	v.SetDefault("database.data_dir", "./data/postgres")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateBridge(); err != nil {
		return fmt.Errorf("bridge config: %w", err)
	}

	if err := c.validateP2P(); err != nil {
		return fmt.Errorf("p2p config: %w", err)
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security config: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateMaintenance(); err != nil {
		return fmt.Errorf("maintenance config: %w", err)
	}

	return nil
}

func (c *Config) validateBridge() error {
	if c.Bridge.TotalValidators <= 0 {
		return fmt.Errorf("total_validators must be positive")
	}

	if c.Bridge.RequiredSignatures <= 0 {
		return fmt.Errorf("required_signatures must be positive")
	}

	if c.Bridge.RequiredSignatures > c.Bridge.TotalValidators {
		return fmt.Errorf("required_signatures (%d) cannot exceed total_validators (%d)",
			c.Bridge.RequiredSignatures, c.Bridge.TotalValidators)
	}

	if c.Bridge.ChallengePeriodHours <= 0 {
		return fmt.Errorf("challenge_period_hours must be positive")
	}

	if c.Bridge.LargeTransferThreshold <= 0 {
		return fmt.Errorf("large_transfer_threshold must be positive")
	}

	return nil
}

func (c *Config) validateP2P() error {
	if c.P2P.Port < 0 || c.P2P.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.P2P.Port)
	}

	if c.P2P.SignatureTimeout <= 0 {
		return fmt.Errorf("signature_timeout must be positive")
	}

	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.MinSignerReputation < 0 || c.Security.MinSignerReputation > 100 {
		return fmt.Errorf("min_signer_reputation must be between 0 and 100")
	}

	if c.Security.ReputationFloor < 0 || c.Security.ReputationFloor > 100 {
		return fmt.Errorf("reputation_floor must be between 0 and 100")
	}

	if c.Security.SlashPenalty <= 0 {
		return fmt.Errorf("slash_penalty must be positive")
	}

	if c.Security.ChallengerPenalty <= 0 {
		return fmt.Errorf("challenger_penalty must be positive")
	}

	if c.Security.KeyFile != "" {
		if !filepath.IsAbs(c.Security.KeyFile) {
			c.Security.KeyFile = filepath.Clean(c.Security.KeyFile)
		}
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" && !c.Database.Embedded {
		return fmt.Errorf("database URL cannot be empty unless embedded mode is enabled")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be positive")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	if c.Maintenance.DecayPenalty < 0 {
		return fmt.Errorf("decay_penalty cannot be negative")
	}
	if c.Maintenance.DecayInactivity <= 0 {
		return fmt.Errorf("decay_inactivity must be positive")
	}
	if c.Maintenance.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	return nil
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
