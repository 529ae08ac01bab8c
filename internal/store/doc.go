package store

// Field ownership (who sets each attribute, and when it becomes immutable):
//
//	TxHash, SourceDomain        intake, Create             immutable
//	Status                      all components             monotonic (see Status)
//	AttestedMessage/Attestation/
//	AttestationNonce/MintRecipient/
//	DestinationDomain/Amount    poller, MarkAttested        set once
//	DestTxHash                  submitter, MarkSubmitted    set once
//	DestBlockNumber, Outcome    submitter, MarkConfirmed    set once
//	ErrorMessage                poller/submitter            latest failure reason
//	PollAttempts, RetryCount    poller/submitter            monotonic non-decreasing
//	CreatedAt                   intake, Create              set once
//	AttestedAt/SubmittedAt/
//	ConfirmedAt                 component at transition     set once
//	UpdatedAt                   every mutator               refreshed every write
//
// The idempotency key is TxHash alone, independent of SourceDomain. This
// admits a cheap pre-claim denial-of-service: an attacker can submit a
// txHash they don't control, with the wrong source domain, before its real
// owner does, permanently occupying that row. This store preserves that
// behavior as-is rather than keying on (SourceDomain, TxHash) jointly;
// see DESIGN.md for the recorded decision.
