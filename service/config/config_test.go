package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "http://localhost:8899", cfg.SolanaRPCURL)
	assert.Equal(t, "confirmed", cfg.SolanaCommitment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, uint64(10_000_000_000), cfg.AirdropLamports) // 10 SOL
	assert.Equal(t, uint8(9), cfg.TokenDecimals)
	assert.Equal(t, uint64(10_000_000_000_000), cfg.TokenSupply) // 10000 * 10^9
	assert.Equal(t, MissingAccountStrict, cfg.MissingAccountPolicy)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, uint64(0), cfg.ConfirmMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.ConfirmInitialInterval)
	assert.Equal(t, 2*time.Second, cfg.ConfirmMaxInterval)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "localhost:7233", cfg.TemporalHost)
	assert.Equal(t, "default", cfg.TemporalNamespace)
	assert.Equal(t, "splflow", cfg.TemporalTaskQueue)
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	os.Setenv("SOLANA_COMMITMENT", "finalized")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("AIRDROP_LAMPORTS", "2000000000")
	os.Setenv("TOKEN_DECIMALS", "6")
	os.Setenv("TOKEN_SUPPLY", "1000000")
	os.Setenv("MISSING_ACCOUNT_POLICY", "lenient")
	os.Setenv("CONFIRM_TIMEOUT", "0s")
	os.Setenv("CONFIRM_MAX_ATTEMPTS", "20")
	os.Setenv("DATABASE_URL", "postgres://localhost/splflow")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.devnet.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, "finalized", cfg.SolanaCommitment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint64(2_000_000_000), cfg.AirdropLamports)
	assert.Equal(t, uint8(6), cfg.TokenDecimals)
	assert.Equal(t, uint64(1_000_000), cfg.TokenSupply)
	assert.Equal(t, MissingAccountLenient, cfg.MissingAccountPolicy)
	assert.Equal(t, time.Duration(0), cfg.ConfirmTimeout)
	assert.Equal(t, uint64(20), cfg.ConfirmMaxAttempts)
	assert.Equal(t, "postgres://localhost/splflow", cfg.DatabaseURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Setenv("CONFIRM_TIMEOUT", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidInteger(t *testing.T) {
	os.Setenv("TOKEN_SUPPLY", "-5")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TOKEN_SUPPLY: invalid integer")
}

func TestLoad_DecimalsOverflow(t *testing.T) {
	os.Setenv("TOKEN_DECIMALS", "300")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must fit in a byte")
}

func TestLoad_UnknownPolicy(t *testing.T) {
	os.Setenv("MISSING_ACCOUNT_POLICY", "optimistic")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_ACCOUNT_POLICY")
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	os.Setenv("SOLANA_COMMITMENT", "eventually")
	os.Setenv("CONFIRM_INITIAL_INTERVAL", "5s")
	os.Setenv("CONFIRM_MAX_INTERVAL", "1s")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_COMMITMENT")
	assert.Contains(t, err.Error(), "cannot be greater than")
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_MissingRPCURL(t *testing.T) {
	cfg := validConfig()
	cfg.SolanaRPCURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SolanaRPCURL is required")
}

func TestValidate_InvalidIntervals(t *testing.T) {
	cfg := validConfig()
	cfg.ConfirmInitialInterval = 10 * time.Second
	cfg.ConfirmMaxInterval = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConfirmInitialInterval cannot be greater than ConfirmMaxInterval")
}

func TestValidate_ZeroSupply(t *testing.T) {
	cfg := validConfig()
	cfg.TokenSupply = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TokenSupply must be positive")
}

func TestMustLoad_Panics(t *testing.T) {
	os.Setenv("SOLANA_COMMITMENT", "eventually")
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

func validConfig() *Config {
	return &Config{
		SolanaRPCURL:           DefaultRPCURL,
		SolanaCommitment:       "confirmed",
		AirdropLamports:        10_000_000_000,
		TokenDecimals:          9,
		TokenSupply:            10_000_000_000_000,
		MissingAccountPolicy:   MissingAccountStrict,
		ConfirmTimeout:         time.Minute,
		ConfirmInitialInterval: 250 * time.Millisecond,
		ConfirmMaxInterval:     2 * time.Second,
		TemporalHost:           "localhost:7233",
		TemporalNamespace:      "default",
		TemporalTaskQueue:      "splflow",
	}
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"LOG_LEVEL",
		"METRICS_ADDR",
		"SERVER_ADDR",
		"SOLANA_RPC_URL",
		"SOLANA_COMMITMENT",
		"AIRDROP_LAMPORTS",
		"TOKEN_DECIMALS",
		"TOKEN_SUPPLY",
		"MISSING_ACCOUNT_POLICY",
		"CONFIRM_TIMEOUT",
		"CONFIRM_MAX_ATTEMPTS",
		"CONFIRM_INITIAL_INTERVAL",
		"CONFIRM_MAX_INTERVAL",
		"DATABASE_URL",
		"NATS_URL",
		"TEMPORAL_HOST",
		"TEMPORAL_NAMESPACE",
		"TEMPORAL_TASK_QUEUE",
	} {
		os.Unsetenv(key)
	}
}
