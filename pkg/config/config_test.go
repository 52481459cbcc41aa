package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := []byte(`
environment: production
log_level: debug
bridge:
  total_validators: 21
  required_signatures: 14
  challenge_period_hours: 48
  large_transfer_threshold: 250000
p2p:
  port: 9001
  signature_timeout: 1m
database:
  url: postgres://localhost/bridge
security:
  min_signer_reputation: 60
  token_expiry: 12h
`)

	err := os.WriteFile(configPath, configContent, 0644)
	require.NoError(t, err)

	// Test successful config loading
	t.Run("LoadValidConfig", func(t *testing.T) {
		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.NotNil(t, cfg)

		// Verify loaded values
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 21, cfg.Bridge.TotalValidators)
		assert.Equal(t, 14, cfg.Bridge.RequiredSignatures)
		assert.Equal(t, 48, cfg.Bridge.ChallengePeriodHours)
		assert.Equal(t, 250000.0, cfg.Bridge.LargeTransferThreshold)
		assert.Equal(t, 9001, cfg.P2P.Port)
		assert.Equal(t, time.Minute, cfg.P2P.SignatureTimeout)
		assert.Equal(t, 60.0, cfg.Security.MinSignerReputation)
	})

	// Test invalid config file
	t.Run("InvalidConfig", func(t *testing.T) {
		invalidPath := filepath.Join(tmpDir, "invalid.yaml")
		err := os.WriteFile(invalidPath, []byte("invalid: [yaml: syntax"), 0644)
		require.NoError(t, err)

		cfg, err := Load(invalidPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestConfigValidation(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Environment: "development",
			LogLevel:    "info",
			Database: DatabaseConfig{
				URL:      "postgres://localhost/bridge",
				MaxConns: 10,
				Timeout:  30 * time.Second,
			},
			Bridge: BridgeConfig{
				TotalValidators:        21,
				RequiredSignatures:     14,
				ChallengePeriodHours:   24,
				LargeTransferThreshold: 100000,
			},
			P2P: P2PConfig{
				Port:             9000,
				SignatureTimeout: 20 * time.Second,
			},
			Security: SecurityConfig{
				MinSignerReputation: 50,
				ReputationFloor:     30,
				SlashPenalty:        50,
				ChallengerPenalty:   5,
			},
			Maintenance: MaintConfig{
				DecaySchedule:   "0 0 * * * *",
				DecayInactivity: 72 * time.Hour,
				DecayPenalty:    1,
				SyncSchedule:    "0 */5 * * * *",
				StatsSchedule:   "0 */15 * * * *",
				MaxConcurrent:   2,
			},
		}
	}

	tests := []struct {
		name         string
		modifyConfig func(*Config)
		wantErr      bool
		errSubstr    string
	}{
		{
			name:         "ValidConfig",
			modifyConfig: func(c *Config) {},
			wantErr:      false,
		},
		{
			name: "InvalidPort",
			modifyConfig: func(c *Config) {
				c.P2P.Port = -1
			},
			wantErr:   true,
			errSubstr: "invalid port number",
		},
		{
			name: "QuorumLargerThanValidatorSet",
			modifyConfig: func(c *Config) {
				c.Bridge.TotalValidators = 10
				c.Bridge.RequiredSignatures = 14
			},
			wantErr:   true,
			errSubstr: "required_signatures",
		},
		{
			name: "InvalidChallengePeriod",
			modifyConfig: func(c *Config) {
				c.Bridge.ChallengePeriodHours = 0
			},
			wantErr:   true,
			errSubstr: "challenge_period_hours",
		},
		{
			name: "InvalidThreshold",
			modifyConfig: func(c *Config) {
				c.Bridge.LargeTransferThreshold = -1
			},
			wantErr:   true,
			errSubstr: "large_transfer_threshold",
		},
		{
			name: "InvalidReputation",
			modifyConfig: func(c *Config) {
				c.Security.MinSignerReputation = 150
			},
			wantErr:   true,
			errSubstr: "min_signer_reputation",
		},
		{
			name: "InvalidMaintenanceConcurrency",
			modifyConfig: func(c *Config) {
				c.Maintenance.MaxConcurrent = 0
			},
			wantErr:   true,
			errSubstr: "max_concurrent",
		},
		{
			name: "MissingDatabaseURL",
			modifyConfig: func(c *Config) {
				c.Database.URL = ""
				c.Database.Embedded = false
			},
			wantErr:   true,
			errSubstr: "database URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyConfig(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	assert.Equal(t, "warn", cfg.GetLogLevel().String())

	cfg.LogLevel = "unknown"
	assert.Equal(t, "info", cfg.GetLogLevel().String())
}
