package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Chain  ChainConfig
	Relay  RelayConfig
	Redis  RedisConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ChainConfig struct {
	RPCURL           string `mapstructure:"rpc_url"`
	ChainID          int64  `mapstructure:"chain_id"`
	RelayerKey       string `mapstructure:"relayer_private_key"`
	ForwarderAddress string `mapstructure:"forwarder_address"`
	VaultAddress     string `mapstructure:"vault_address"`
}

type RelayConfig struct {
	AllowedSelectors  string `mapstructure:"allowed_selectors"`
	OuterGasBuffer    uint64 `mapstructure:"outer_gas_buffer"`
	ReadTimeoutSec    int64  `mapstructure:"read_timeout_sec"`
	ConfirmTimeoutSec int64  `mapstructure:"confirm_timeout_sec"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// defaultVoteSelector is the 4-byte selector of vote(uint256), the single
// operation the relay pays for out of the box.
func defaultVoteSelector() string {
	sel := crypto.Keccak256([]byte("vote(uint256)"))[:4]
	return fmt.Sprintf("0x%x", sel)
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8787)
	v.SetDefault("relay.allowed_selectors", defaultVoteSelector())
	v.SetDefault("relay.outer_gas_buffer", 250000)
	v.SetDefault("relay.read_timeout_sec", 15)
	v.SetDefault("relay.confirm_timeout_sec", 120)
	v.SetDefault("redis.addr", "redis:6379")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":               "PORT",
		"chain.rpc_url":             "RPC_URL",
		"chain.chain_id":            "CHAIN_ID",
		"chain.relayer_private_key": "RELAYER_PRIVATE_KEY",
		"chain.forwarder_address":   "FORWARDER_ADDRESS",
		"chain.vault_address":       "SPONSOR_VAULT_ADDRESS",
		"relay.allowed_selectors":   "ALLOWED_SELECTORS",
		"relay.outer_gas_buffer":    "OUTER_GAS_BUFFER",
		"relay.read_timeout_sec":    "READ_TIMEOUT_SEC",
		"relay.confirm_timeout_sec": "CONFIRM_TIMEOUT_SEC",
		"redis.addr":                "REDIS_ADDR",
		"redis.password":            "REDIS_PASSWORD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Chain.RPCURL, "RPC_URL"},
		{c.Chain.RelayerKey, "RELAYER_PRIVATE_KEY"},
		{c.Chain.ForwarderAddress, "FORWARDER_ADDRESS"},
		{c.Chain.VaultAddress, "SPONSOR_VAULT_ADDRESS"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	if c.Relay.OuterGasBuffer == 0 {
		return fmt.Errorf("OUTER_GAS_BUFFER must be positive")
	}
	return nil
}

// Selectors parses the comma-separated allowlist into lowercase 0x-prefixed
// 4-byte selector strings.
func (c *RelayConfig) Selectors() ([]string, error) {
	parts := strings.Split(c.AllowedSelectors, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToLower(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, "0x") || len(s) != 10 {
			return nil, fmt.Errorf("invalid selector %q (want 0x + 8 hex chars)", p)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ALLOWED_SELECTORS is empty")
	}
	return out, nil
}
