package store

import "context"

// AttestedFields carries everything the poller learns when a job clears
// attestation, persisted in a single atomic update.
type AttestedFields struct {
	AttestedMessage   []byte
	Attestation       []byte
	AttestationNonce  []byte
	MintRecipient     string
	DestinationDomain int
	Amount            string
}

// Store is the durable, crash-safe persistence contract relay jobs pass
// through. All three components (intake, poller, submitter) talk to each
// other only by reading and writing through a Store; there is no in-memory
// queue. Implementations must serialize writes internally so that no two
// updates to the same row interleave non-atomically, and every mutator must
// refresh UpdatedAt.
type Store interface {
	// Create inserts a new pending job. It returns ErrConflict, without
	// mutating anything, if a row with job.TxHash already exists.
	Create(ctx context.Context, job *RelayJob) error

	// Get returns the job for txHash, or ErrNotFound.
	Get(ctx context.Context, txHash string) (*RelayJob, error)

	// ListByStatus returns up to limit jobs whose status is in statuses,
	// ordered by CreatedAt ascending. limit <= 0 means no limit.
	ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*RelayJob, error)

	// OldestByStatus returns the single oldest job (by CreatedAt) with the
	// given status, or ErrNoJobs if none match.
	OldestByStatus(ctx context.Context, status Status) (*RelayJob, error)

	// CountByStatus returns the number of jobs per status, including
	// statuses with a zero count.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// MarkPolling transitions a pending job to polling. Persisted before
	// the poller issues its upstream call, so a crash mid-call leaves the
	// job resumable from polling rather than stuck in pending forever.
	MarkPolling(ctx context.Context, txHash string) error

	// IncrementPollAttempt bumps PollAttempts without changing status; used
	// whenever a poll cycle observes the job is still pending attestation.
	IncrementPollAttempt(ctx context.Context, txHash string) error

	// MarkAttested persists the poller's terminal success outcome for a
	// job: status becomes attested, AttestedAt is stamped, the attested
	// fields are set, and PollAttempts is incremented.
	MarkAttested(ctx context.Context, txHash string, fields AttestedFields) error

	// MarkFailed transitions any non-terminal job to failed with the given
	// reason. Used by the poller (validation/timeout failures) and the
	// submitter (terminal submission failures).
	MarkFailed(ctx context.Context, txHash, reason string) error

	// MarkSubmitted records a broadcast transaction and transitions the job
	// to submitted. Persisted before the submitter awaits confirmation, so
	// a crash mid-wait is recoverable via the restart-recovery sweep rather
	// than leaving the job stranded with a broadcast transaction no one is
	// tracking.
	MarkSubmitted(ctx context.Context, txHash, destTxHash string) error

	// MarkConfirmed finalizes a submitted job with its outcome.
	MarkConfirmed(ctx context.Context, txHash string, outcome Outcome, destBlockNumber int64) error

	// RequeueAttested records a transient submission failure: RetryCount is
	// incremented and the job's ErrorMessage is set, but status remains (or
	// returns to) attested so the submitter picks it up again next
	// iteration.
	RequeueAttested(ctx context.Context, txHash, reason string) error

	// IncrementRetryFailed increments RetryCount and transitions the job to
	// failed, used when a transient failure exhausts max_retries.
	IncrementRetryFailed(ctx context.Context, txHash, reason string) error

	Close() error
}
