// Package store implements the durable, crash-safe persistence layer for
// relay jobs. It is the single rendezvous point between the intake API, the
// attestation poller, and the submitter: components never communicate
// directly, only by reading and writing rows through this package.
package store

import "time"

// Status is a relay job's position in its state machine.
//
//	pending -> polling -> attested -> submitted -> confirmed
//
// failed is a terminal sink reachable from any non-terminal status. attested
// is also re-entered through the submitter's transient retry path: a
// submission error that doesn't exhaust retries requeues the job as
// attested, either from attested itself (failed simulation or broadcast)
// or from submitted (on-chain revert). The restart-recovery sweep also
// moves a submitted job whose destination transaction was dropped back to
// attested.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPolling   Status = "polling"
	StatusAttested  Status = "attested"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Outcome classifies a confirmed job by the destination event it matched.
// It is empty unless Status is StatusConfirmed; a confirmed job whose
// receipt matched none of the three primary events also has an empty
// Outcome.
type Outcome string

const (
	OutcomeForwarded      Outcome = "forwarded"
	OutcomeFallback       Outcome = "fallback"
	OutcomeOperatorRouted Outcome = "operator_routed"
)

// RelayJob is the durable record of one burn-to-mint relay, keyed by its
// source-chain transaction hash. See doc.go for the field ownership table.
type RelayJob struct {
	TxHash       string
	SourceDomain int
	Status       Status

	// Populated once, on the pending/polling -> attested transition.
	AttestedMessage   []byte
	Attestation       []byte
	AttestationNonce  []byte
	MintRecipient     string
	DestinationDomain int
	Amount            string

	// Populated by the submitter.
	DestTxHash     string
	DestBlockNumber int64
	Outcome        Outcome

	ErrorMessage string

	PollAttempts int
	RetryCount   int

	CreatedAt   time.Time
	AttestedAt  time.Time
	SubmittedAt time.Time
	ConfirmedAt time.Time
	UpdatedAt   time.Time
}

// IsTerminal reports whether the job's status will never transition again.
func (j *RelayJob) IsTerminal() bool {
	return j.Status == StatusConfirmed || j.Status == StatusFailed
}
