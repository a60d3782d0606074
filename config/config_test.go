package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Environment()
	require.NoError(t, err)

	assert.Equal(t, "pulsar-2", cfg.Chain.ID)
	assert.Equal(t, "https://api.pulsar.scrttestnet.com", cfg.Chain.LCDURL)
	assert.Equal(t, uint64(21033), cfg.Contract.CodeID)
	assert.Equal(t, "9c09c7924ad7b90719fedcb05bff2c1fd898f80a7216c00259558f1c4265387d", cfg.Contract.CodeHash)
	assert.Equal(t, uint32(529), cfg.Wallet.CoinType)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.AlertShowTime)
	assert.Equal(t, time.Duration(0), cfg.Chain.RequestTimeout)
	assert.Equal(t, 2.0, cfg.API.WriteRPS)
	assert.Equal(t, "secret", cfg.Chain.Encryption)
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EVOTE_CHAIN_ID", "secret-4")
	t.Setenv("EVOTE_CONTRACT_CODE_ID", "7")
	t.Setenv("EVOTE_STORAGE_DRIVER", "sqlite")
	t.Setenv("EVOTE_ALERT_SHOW_TIME", "3s")

	cfg, err := Environment()
	require.NoError(t, err)

	assert.Equal(t, "secret-4", cfg.Chain.ID)
	assert.Equal(t, uint64(7), cfg.Contract.CodeID)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.AlertShowTime)
}

func TestEnvironmentRejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EVOTE_STORAGE_DRIVER", "localstorage")

	_, err := Environment()
	assert.Error(t, err)
}

func TestEnvironmentRejectsUnknownEncryption(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EVOTE_CHAIN_ENCRYPTION", "none")

	_, err := Environment()
	assert.Error(t, err)

	t.Setenv("EVOTE_CHAIN_ENCRYPTION", "plain")
	cfg, err := Environment()
	require.NoError(t, err)
	assert.Equal(t, "plain", cfg.Chain.Encryption)
}

func TestSafeConfig(t *testing.T) {
	var cfg Config
	cfg.Wallet.Mnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

	safe := SafeConfig(cfg)
	assert.Equal(t, "*** Masked ***", safe.Wallet.Mnemonic)
	assert.NotEqual(t, safe.Wallet.Mnemonic, cfg.Wallet.Mnemonic)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
