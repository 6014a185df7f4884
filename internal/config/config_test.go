package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("CHAIN_ID", "31337")
	t.Setenv("RELAYER_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv("FORWARDER_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("SPONSOR_VAULT_ADDRESS", "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("port: got %d want 8787", cfg.Server.Port)
	}
	if cfg.Relay.OuterGasBuffer != 250000 {
		t.Errorf("gas buffer: got %d want 250000", cfg.Relay.OuterGasBuffer)
	}
	if cfg.Relay.ReadTimeoutSec != 15 || cfg.Relay.ConfirmTimeoutSec != 120 {
		t.Errorf("timeouts: got %d/%d", cfg.Relay.ReadTimeoutSec, cfg.Relay.ConfirmTimeoutSec)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr: got %s", cfg.Redis.Addr)
	}
	// keccak("vote(uint256)")[:4]
	if cfg.Relay.AllowedSelectors != "0x0121b93f" {
		t.Errorf("default selector: got %s", cfg.Relay.AllowedSelectors)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("OUTER_GAS_BUFFER", "300000")
	t.Setenv("ALLOWED_SELECTORS", "0x0121b93f,0xdeadbeef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port: got %d want 9000", cfg.Server.Port)
	}
	if cfg.Relay.OuterGasBuffer != 300000 {
		t.Errorf("gas buffer: got %d want 300000", cfg.Relay.OuterGasBuffer)
	}
	sels, err := cfg.Relay.Selectors()
	if err != nil {
		t.Fatal(err)
	}
	if len(sels) != 2 || sels[1] != "0xdeadbeef" {
		t.Errorf("selectors: got %v", sels)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RELAYER_PRIVATE_KEY", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when RELAYER_PRIVATE_KEY is unset")
	}
}

func TestSelectors_Normalization(t *testing.T) {
	rc := RelayConfig{AllowedSelectors: " 0x0121B93F , 0xAABBCCDD "}
	sels, err := rc.Selectors()
	if err != nil {
		t.Fatal(err)
	}
	if len(sels) != 2 || sels[0] != "0x0121b93f" || sels[1] != "0xaabbccdd" {
		t.Errorf("got %v", sels)
	}
}

func TestSelectors_Invalid(t *testing.T) {
	for _, bad := range []string{"0121b93f", "0x0121b9", "", "0x0121b93f5"} {
		rc := RelayConfig{AllowedSelectors: bad}
		if _, err := rc.Selectors(); err == nil {
			t.Errorf("selector %q accepted", bad)
		}
	}
}
