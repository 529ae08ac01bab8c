// Package poller implements the attestation polling loop: it advances jobs
// from pending/polling to attested by watching the upstream attestation
// API, handing the raw message bytes off to internal/validator before a
// job is allowed to reach attested.
//
// The batch-cycle shape - fetch up to N oldest candidates, process each in
// order, sleep between cycles, check a shutdown signal at the top of every
// cycle - is grounded on github.com/joeycumines/go-utilpkg/longpoll's
// Channel, which applies the same "bounded batch, context-checked between
// iterations" idiom to a different kind of batching.
package poller

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/SeungheonOh/xreserve-relay/internal/attestation"
	"github.com/SeungheonOh/xreserve-relay/internal/logging"
	"github.com/SeungheonOh/xreserve-relay/internal/ratelimit"
	"github.com/SeungheonOh/xreserve-relay/internal/store"
	"github.com/SeungheonOh/xreserve-relay/internal/validator"
)

// Config holds the poller's tunables.
type Config struct {
	BatchSize          int
	CycleInterval      time.Duration
	AttestationTimeout time.Duration
	ThrottleBackoff    time.Duration
}

// DefaultConfig returns reasonable defaults for fields the caller doesn't
// override from environment config.
func DefaultConfig() Config {
	return Config{
		BatchSize:       20,
		ThrottleBackoff: 60 * time.Second,
	}
}

// Poller advances jobs through attestation polling. One instance per
// process; it is the only writer of the pending/polling -> attested and
// pending/polling -> failed transitions.
type Poller struct {
	store   store.Store
	client  *attestation.Client
	limiter *ratelimit.Bucket
	policy  validator.Policy
	log     *logging.Logger
	cfg     Config

	now func() time.Time
}

func New(s store.Store, client *attestation.Client, limiter *ratelimit.Bucket, policy validator.Policy, log *logging.Logger, cfg Config) *Poller {
	return &Poller{
		store:   s,
		client:  client,
		limiter: limiter,
		policy:  policy,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run executes poll cycles until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !p.runCycle(ctx) {
			return nil
		}

		if !sleepOrDone(ctx, p.cfg.CycleInterval) {
			return nil
		}
	}
}

// runCycle processes up to BatchSize oldest pending/polling jobs in order.
// It returns false if ctx was canceled mid-cycle and the caller should stop.
func (p *Poller) runCycle(ctx context.Context) bool {
	jobs, err := p.store.ListByStatus(ctx, []store.Status{store.StatusPending, store.StatusPolling}, p.cfg.BatchSize)
	if err != nil {
		p.log.Err().Str("error", err.Error()).Log("poller: list candidates failed")
		return true
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if !p.processJob(ctx, job) {
			// global throttle signal: abort the rest of this cycle without
			// advancing any further job, since the limiter is shared across
			// every job in the batch.
			if !sleepOrDone(ctx, p.cfg.ThrottleBackoff) {
				return false
			}
			return true
		}
	}
	return true
}

// processJob returns false if the upstream signaled a throttle, telling the
// caller to abort the rest of the cycle.
func (p *Poller) processJob(ctx context.Context, job *store.RelayJob) bool {
	if p.now().Sub(job.CreatedAt) > p.cfg.AttestationTimeout {
		if err := p.store.MarkFailed(ctx, job.TxHash, "attestation_timeout"); err != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("poller: persist attestation timeout failed")
		}
		return true
	}

	if job.Status == store.StatusPending {
		if err := p.store.MarkPolling(ctx, job.TxHash); err != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("poller: persist polling transition failed")
			return true
		}
	}

	if err := p.limiter.Acquire(ctx); err != nil {
		return true
	}

	result := p.client.GetAttestation(ctx, job.SourceDomain, job.TxHash)
	switch result.Outcome {
	case attestation.OutcomePending:
		if err := p.store.IncrementPollAttempt(ctx, job.TxHash); err != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("poller: persist poll attempt failed")
		}
		return true

	case attestation.OutcomeThrottled:
		p.log.Warning().Str("tx_hash", job.TxHash).Log("poller: upstream throttled, backing off")
		return false

	case attestation.OutcomeUnavailable:
		if err := p.store.IncrementPollAttempt(ctx, job.TxHash); err != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("poller: persist poll attempt failed")
		}
		if result.Err != nil {
			p.log.Warning().Str("tx_hash", job.TxHash).Str("error", result.Err.Error()).Log("poller: upstream unavailable")
		}
		return true

	case attestation.OutcomeAttested:
		p.handleAttested(ctx, job, result)
		return true
	}
	return true
}

func (p *Poller) handleAttested(ctx context.Context, job *store.RelayJob, result attestation.PollResult) {
	messageBytes, err := hex.DecodeString(strings.TrimPrefix(result.Message.Message, "0x"))
	if err != nil {
		if e := p.store.MarkFailed(ctx, job.TxHash, "malformed message hex"); e != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("poller: persist malformed message failure failed")
		}
		return
	}
	attestationBytes, err := hex.DecodeString(strings.TrimPrefix(result.Message.Attestation, "0x"))
	if err != nil {
		if e := p.store.MarkFailed(ctx, job.TxHash, "malformed attestation hex"); e != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("poller: persist malformed attestation failure failed")
		}
		return
	}

	parsed, err := validator.Validate(messageBytes, p.policy)
	if err != nil {
		if e := p.store.MarkFailed(ctx, job.TxHash, err.Error()); e != nil {
			p.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("poller: persist validation failure failed")
		}
		p.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("poller: message validation failed")
		return
	}

	if parsed.DestinationCallerIsZero {
		p.log.Warning().Str("tx_hash", job.TxHash).Log("poller: destinationCaller is zero, message is front-runnable")
	}

	fields := store.AttestedFields{
		AttestedMessage:   messageBytes,
		Attestation:       attestationBytes,
		AttestationNonce:  parsed.Nonce,
		MintRecipient:     parsed.MintRecipient.Hex(),
		DestinationDomain: int(parsed.DestinationDomain),
		Amount:            parsed.Amount.String(),
	}
	if err := p.store.MarkAttested(ctx, job.TxHash, fields); err != nil {
		p.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("poller: persist attested failed")
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
