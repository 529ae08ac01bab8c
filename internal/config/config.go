// Package config loads and validates the relay's environment-variable
// configuration. Config is constructed once at startup and then passed
// around as shared, immutable, read-only state for the rest of the
// process's lifetime.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	IsTestnet bool `env:"IS_TESTNET" envDefault:"false"`

	// RouterAddress is the local router the message validator checks
	// mintRecipient/destinationCaller against.
	RouterAddress string `env:"ROUTER_ADDRESS,required"`
	// TransmitterAddress is the destination contract the submitter calls
	// receiveAndForward on.
	TransmitterAddress string `env:"TRANSMITTER_ADDRESS,required"`
	EthereumRPCURL     string `env:"ETHEREUM_RPC_URL,required"`
	RelayerPrivateKey  string `env:"RELAYER_PRIVATE_KEY,required"`

	APIPort int `env:"API_PORT" envDefault:"3000"`

	PollCycleIntervalMS  int `env:"POLL_CYCLE_INTERVAL_MS" envDefault:"2000"`
	AttestationTimeoutMS int `env:"ATTESTATION_TIMEOUT_MS" envDefault:"1800000"`

	MaxRetries              int `env:"MAX_RETRIES" envDefault:"3"`
	SubmitterPollIntervalMS int `env:"SUBMITTER_POLL_INTERVAL_MS" envDefault:"2000"`

	RelayFee int64 `env:"RELAY_FEE" envDefault:"0"`

	DBPath string `env:"DB_PATH" envDefault:"./data/relay.db"`

	// AllowedSourceDomains is the closed allow-list intake validates
	// sourceDomain against; the destination's own domain
	// (validator.LocalDomain, 0) is deliberately excluded from the default.
	AllowedSourceDomains []int `env:"ALLOWED_SOURCE_DOMAINS" envSeparator:"," envDefault:"1,2,3,4,5,6,7"`

	APIRateLimitRPS   float64 `env:"API_RATE_LIMIT_RPS" envDefault:"20"`
	APIRateLimitBurst float64 `env:"API_RATE_LIMIT_BURST" envDefault:"40"`

	// AttestationRateLimitRPS/Burst default to 30/30, a margin below the
	// observed upstream ceiling of roughly 35 requests per second; running
	// above that ceiling risks upstream throttling.
	AttestationRateLimitRPS   float64 `env:"ATTESTATION_RATE_LIMIT_RPS" envDefault:"30"`
	AttestationRateLimitBurst float64 `env:"ATTESTATION_RATE_LIMIT_BURST" envDefault:"30"`
}

// Load reads and validates configuration from the process environment.
// Missing required variables are reported together in a single error, so
// an operator sees every problem at once rather than fixing them one at a
// time.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &c, nil
}

func (c *Config) PollCycleInterval() time.Duration {
	return time.Duration(c.PollCycleIntervalMS) * time.Millisecond
}

func (c *Config) AttestationTimeout() time.Duration {
	return time.Duration(c.AttestationTimeoutMS) * time.Millisecond
}

func (c *Config) SubmitterPollInterval() time.Duration {
	return time.Duration(c.SubmitterPollIntervalMS) * time.Millisecond
}

// AttestationBaseURL returns the upstream attestation API base URL
// selected by IsTestnet.
func (c *Config) AttestationBaseURL(mainnet, testnet string) string {
	if c.IsTestnet {
		return testnet
	}
	return mainnet
}
