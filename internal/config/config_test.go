package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"ROUTER_ADDRESS":      "0x1111222233334444555566667777888899990000",
		"ETHEREUM_RPC_URL":    "https://rpc.example.com",
		"RELAYER_PRIVATE_KEY": "0xdeadbeef",
		"TRANSMITTER_ADDRESS": "0x2222333344445555666677778888999900001111",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.APIPort != 3000 {
		t.Errorf("got APIPort %d", c.APIPort)
	}
	if c.MaxRetries != 3 {
		t.Errorf("got MaxRetries %d", c.MaxRetries)
	}
	if c.PollCycleInterval().Milliseconds() != 2000 {
		t.Errorf("got poll interval %v", c.PollCycleInterval())
	}
	if c.AttestationTimeout().Milliseconds() != 1_800_000 {
		t.Errorf("got attestation timeout %v", c.AttestationTimeout())
	}
	if c.IsTestnet {
		t.Error("expected IsTestnet default false")
	}
	if c.DBPath != "./data/relay.db" {
		t.Errorf("got DBPath %q", c.DBPath)
	}
	if c.AttestationRateLimitRPS != 30 {
		t.Errorf("got AttestationRateLimitRPS %v", c.AttestationRateLimitRPS)
	}
	if c.AttestationRateLimitBurst != 30 {
		t.Errorf("got AttestationRateLimitBurst %v", c.AttestationRateLimitBurst)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required vars")
	}
}

func TestAttestationBaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IS_TESTNET", "true")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.AttestationBaseURL("main", "test"); got != "test" {
		t.Errorf("got %q, want test", got)
	}
}
