// Package config holds the runtime configuration of the e-voting client.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Prefix is prepended to every environment variable, e.g. EVOTE_CHAIN_ID.
const Prefix = "EVOTE"

// Config is used to hold all runtime configuration.
type Config struct {
	Chain struct {
		ID             string        `default:"pulsar-2" envconfig:"ID"`
		LCDURL         string        `default:"https://api.pulsar.scrttestnet.com" envconfig:"LCD_URL"`
		Bech32Prefix   string        `default:"secret" envconfig:"BECH32_PREFIX"`
		FeeDenom       string        `default:"uscrt" envconfig:"FEE_DENOM"`
		GasPrice       float64       `default:"0.1" envconfig:"GAS_PRICE"`
		RequestTimeout time.Duration `default:"0s" envconfig:"REQUEST_TIMEOUT"`
		ConfirmTimeout time.Duration `default:"60s" envconfig:"CONFIRM_TIMEOUT"`
		PollInterval   time.Duration `default:"2s" envconfig:"POLL_INTERVAL"`
		// Encryption is "secret" for enclave encrypted contract messages or
		// "plain" for nodes that accept plaintext.
		Encryption string `default:"secret" envconfig:"ENCRYPTION"`
	} `envconfig:"CHAIN"`
	Contract struct {
		CodeID   uint64 `default:"21033" envconfig:"CODE_ID"`
		CodeHash string `default:"9c09c7924ad7b90719fedcb05bff2c1fd898f80a7216c00259558f1c4265387d" envconfig:"CODE_HASH"`
	} `envconfig:"CONTRACT"`
	Wallet struct {
		Mnemonic     string `envconfig:"MNEMONIC"`
		MnemonicFile string `envconfig:"MNEMONIC_FILE"`
		AccountIndex uint32 `default:"0" envconfig:"ACCOUNT_INDEX"`
		CoinType     uint32 `default:"529" envconfig:"COIN_TYPE"`
	} `envconfig:"WALLET"`
	Storage struct {
		Driver    string `default:"file" envconfig:"DRIVER"`
		Path      string `default:"data" envconfig:"PATH"`
		RedisAddr string `default:"127.0.0.1:6379" envconfig:"REDIS_ADDR"`
	} `envconfig:"STORAGE"`
	Log struct {
		Level  string `default:"info" envconfig:"LEVEL"`
		Format string `default:"console" envconfig:"FORMAT"`
		File   string `envconfig:"FILE"`
	} `envconfig:"LOG"`
	API struct {
		Addr      string  `default:":8080" envconfig:"ADDR"`
		ReadRPS   float64 `default:"20" envconfig:"READ_RPS"`
		WriteRPS  float64 `default:"2" envconfig:"WRITE_RPS"`
		RateBurst int     `default:"5" envconfig:"RATE_BURST"`
	} `envconfig:"API"`
	AlertShowTime time.Duration `default:"10s" envconfig:"ALERT_SHOW_TIME"`
}

// SafeConfig masks sensitive config values
func SafeConfig(cfg Config) *Config {
	cfgSafe := cfg

	if len(cfgSafe.Wallet.Mnemonic) > 0 {
		cfgSafe.Wallet.Mnemonic = "*** Masked ***"
	}

	return &cfgSafe
}

// Environment returns configuration sourced from environment variables. A .env
// file in the working directory is loaded first when one exists; variables
// already set in the environment win over it.
func Environment() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values a client cannot run without.
func (c *Config) Validate() error {
	if c.Chain.ID == "" {
		return errors.New("chain id is required")
	}
	if c.Chain.LCDURL == "" {
		return errors.New("lcd url is required")
	}
	if c.Contract.CodeHash == "" {
		return errors.New("contract code hash is required")
	}
	if c.Chain.GasPrice < 0 {
		return errors.Errorf("gas price must not be negative: %v", c.Chain.GasPrice)
	}
	switch c.Chain.Encryption {
	case "secret", "plain":
	default:
		return errors.Errorf("unknown encryption mode %q", c.Chain.Encryption)
	}
	switch c.Storage.Driver {
	case "file", "memory", "badger", "sqlite", "redis":
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
