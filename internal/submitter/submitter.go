// Package submitter implements the sequential submission loop: it takes
// attested jobs one at a time, simulates, broadcasts, awaits confirmation,
// classifies the outcome, and applies the retry policy. It also owns the
// startup restart-recovery sweep that finalizes jobs left in "submitted"
// across a crash.
//
// The loop's shutdown/cancellation shape - a context.Context plus a single
// done signal observed at the top of every iteration - is grounded on
// github.com/joeycumines/go-utilpkg/microbatch's Batcher, which uses the
// same context+cancel+done idiom for its own background loop.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SeungheonOh/xreserve-relay/internal/logging"
	"github.com/SeungheonOh/xreserve-relay/internal/store"
)

// Chain is the subset of chainio.Client the submitter depends on, narrowed
// to an interface so the retry/classification logic can be tested against
// a fake without a live JSON-RPC endpoint.
type Chain interface {
	SimulateReceiveAndForward(ctx context.Context, message, attestation []byte, relayFee *big.Int) error
	BroadcastReceiveAndForward(ctx context.Context, message, attestation []byte, relayFee *big.Int) (common.Hash, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionState(ctx context.Context, hash common.Hash) (pending, found bool, err error)
}

// Config holds the submitter's tunables.
type Config struct {
	PollInterval             time.Duration
	MaxRetries               int
	RelayFee                 *big.Int
	ConfirmationPollInterval time.Duration
	ConfirmationTimeout      time.Duration
}

// DefaultConfig returns reasonable defaults for fields not read from
// Config's environment-backed counterparts.
func DefaultConfig() Config {
	return Config{
		ConfirmationPollInterval: 2 * time.Second,
		ConfirmationTimeout:      2 * time.Minute,
	}
}

// Submitter drives attested jobs through to confirmation. One instance per
// process; it owns the signer exclusively, so submissions are strictly
// sequential - never run two Run loops against the same Chain. Sharing a
// nonce across concurrent submitters would race on-chain.
type Submitter struct {
	store store.Store
	chain Chain
	log   *logging.Logger
	cfg   Config
}

func New(s store.Store, chain Chain, log *logging.Logger, cfg Config) *Submitter {
	return &Submitter{store: s, chain: chain, log: log, cfg: cfg}
}

// Run executes the restart-recovery sweep once, then loops until ctx is
// canceled, processing one attested job per iteration - never more than
// one in-flight transaction at a time.
func (s *Submitter) Run(ctx context.Context) error {
	if err := s.RecoverSubmitted(ctx); err != nil {
		s.log.Err().Str("error", err.Error()).Log("submitter: restart recovery failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := s.store.OldestByStatus(ctx, store.StatusAttested)
		if errors.Is(err, store.ErrNoJobs) {
			if !sleepOrDone(ctx, s.cfg.PollInterval) {
				return nil
			}
			continue
		}
		if err != nil {
			s.log.Err().Str("error", err.Error()).Log("submitter: fetch oldest attested job failed")
			if !sleepOrDone(ctx, s.cfg.PollInterval) {
				return nil
			}
			continue
		}

		s.processJob(ctx, job)

		// at least 1s between iterations, to avoid tight retry loops
		if !sleepOrDone(ctx, max(time.Second, s.cfg.PollInterval)) {
			return nil
		}
	}
}

func (s *Submitter) processJob(ctx context.Context, job *store.RelayJob) {
	logEvt := s.log.Info().Str("tx_hash", job.TxHash)
	logEvt.Log("submitter: processing attested job")

	if err := s.chain.SimulateReceiveAndForward(ctx, job.AttestedMessage, job.Attestation, s.cfg.RelayFee); err != nil {
		s.handleFailure(ctx, job, err)
		return
	}

	destHash, err := s.chain.BroadcastReceiveAndForward(ctx, job.AttestedMessage, job.Attestation, s.cfg.RelayFee)
	if err != nil {
		s.handleFailure(ctx, job, err)
		return
	}

	if err := s.store.MarkSubmitted(ctx, job.TxHash, destHash.Hex()); err != nil {
		s.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("submitter: persist submitted failed")
		return
	}

	s.awaitAndFinalize(ctx, job.TxHash, destHash)
}

// awaitAndFinalize polls for the receipt, classifies it, and persists the
// terminal confirmed state. It is shared between the normal flow and the
// restart-recovery sweep.
func (s *Submitter) awaitAndFinalize(ctx context.Context, txHash string, destHash common.Hash) {
	deadline := time.Now().Add(s.cfg.ConfirmationTimeout)
	for {
		receipt, err := s.chain.Receipt(ctx, destHash)
		if err == nil && receipt != nil {
			s.finalizeReceipt(ctx, txHash, receipt)
			return
		}

		if time.Now().After(deadline) {
			s.log.Warning().Str("tx_hash", txHash).Log("submitter: confirmation wait exceeded deadline, will retry next recovery sweep")
			return
		}

		if !sleepOrDone(ctx, s.cfg.ConfirmationPollInterval) {
			return
		}
	}
}

func (s *Submitter) finalizeReceipt(ctx context.Context, txHash string, receipt *types.Receipt) {
	if receipt.Status == types.ReceiptStatusFailed {
		s.handleFailure(ctx, mustJob(ctx, s.store, txHash), fmt.Errorf("transaction reverted on-chain"))
		return
	}

	outcome, matched, recovered := ClassifyReceipt(receipt.Logs)
	if recovered {
		s.log.Info().Str("tx_hash", txHash).Log("submitter: RecoveredFromConsumedNonce observed")
	}
	if !matched {
		s.log.Warning().Str("tx_hash", txHash).Log("submitter: no known event signature matched, outcome unknown")
	}
	if outcome == store.OutcomeOperatorRouted {
		s.log.Warning().Str("tx_hash", txHash).Log("submitter: funds routed to operator wallet")
	}

	if err := s.store.MarkConfirmed(ctx, txHash, outcome, int64(receipt.BlockNumber.Int64())); err != nil {
		s.log.Err().Str("tx_hash", txHash).Str("error", err.Error()).Log("submitter: persist confirmed failed")
	}
}

// handleFailure applies the terminal/transient retry policy.
func (s *Submitter) handleFailure(ctx context.Context, job *store.RelayJob, err error) {
	if job == nil {
		return
	}
	reason := err.Error()
	class := ClassifyFailure(reason)

	if class == Terminal {
		if e := s.store.MarkFailed(ctx, job.TxHash, reason); e != nil {
			s.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("submitter: persist terminal failure failed")
		}
		s.log.Err().Str("tx_hash", job.TxHash).Str("error", reason).Log("submitter: terminal failure, no retry")
		return
	}

	if job.RetryCount+1 >= s.cfg.MaxRetries {
		if e := s.store.IncrementRetryFailed(ctx, job.TxHash, reason); e != nil {
			s.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("submitter: persist retry-exhausted failure failed")
		}
		s.log.Err().Str("tx_hash", job.TxHash).Str("error", reason).Log("submitter: transient failure exhausted retries")
		return
	}

	if e := s.store.RequeueAttested(ctx, job.TxHash, reason); e != nil {
		s.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("submitter: requeue after transient failure failed")
	}
	s.log.Warning().Str("tx_hash", job.TxHash).Str("error", reason).Log("submitter: transient failure, requeued")
}

// RecoverSubmitted runs the mandatory restart-recovery sweep: for every job
// left in "submitted" across a crash, look up its destination receipt;
// finalize if mined, wait for confirmation if still pending in the
// mempool, or requeue as attested (with retryCount incremented) if the
// transaction has been dropped. A crash between broadcast and
// confirmation would otherwise strand the job in "submitted" forever.
func (s *Submitter) RecoverSubmitted(ctx context.Context) error {
	jobs, err := s.store.ListByStatus(ctx, []store.Status{store.StatusSubmitted}, 0)
	if err != nil {
		return fmt.Errorf("submitter: list submitted jobs: %w", err)
	}

	for _, job := range jobs {
		destHash := common.HexToHash(job.DestTxHash)

		receipt, err := s.chain.Receipt(ctx, destHash)
		if err == nil && receipt != nil {
			s.finalizeReceipt(ctx, job.TxHash, receipt)
			continue
		}

		pending, found, err := s.chain.TransactionState(ctx, destHash)
		if err != nil {
			s.log.Err().Str("tx_hash", job.TxHash).Str("error", err.Error()).Log("submitter: recovery: transaction state lookup failed")
			continue
		}

		if !found {
			if e := s.store.RequeueAttested(ctx, job.TxHash, "destination transaction dropped, requeued after restart"); e != nil {
				s.log.Err().Str("tx_hash", job.TxHash).Str("error", e.Error()).Log("submitter: recovery: requeue failed")
			}
			continue
		}

		if pending {
			s.awaitAndFinalize(ctx, job.TxHash, destHash)
		}
	}
	return nil
}

func mustJob(ctx context.Context, st store.Store, txHash string) *store.RelayJob {
	job, err := st.Get(ctx, txHash)
	if err != nil {
		return nil
	}
	return job
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func max(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
