package submitter

import (
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SeungheonOh/xreserve-relay/internal/chainio"
	"github.com/SeungheonOh/xreserve-relay/internal/store"
)

// Classification distinguishes a submission failure that will never
// succeed on retry from one that might.
type Classification int

const (
	Transient Classification = iota
	Terminal
)

// terminalSubstrings is the closed set of revert-reason substrings that
// signal permanent contract-layer rejection. Matching is case-insensitive
// substring containment, not exact equality, since revert strings are
// free-form and node/client dependent.
var terminalSubstrings = []string{
	"transfer settled",
	"already settled",
	"nonce already used",
	"already used nonce",
	"invalid destination domain",
	"invalid destination caller",
	"invalid mint recipient",
	"invalid fee",
}

// ClassifyFailure inspects a submission error's message and decides
// whether it is terminal (matches the closed substring set above) or
// transient (any other failure).
func ClassifyFailure(errMsg string) Classification {
	lower := strings.ToLower(errMsg)
	for _, sub := range terminalSubstrings {
		if strings.Contains(lower, sub) {
			return Terminal
		}
	}
	return Transient
}

// ClassifyReceipt scans a confirmed transaction's logs for the four known
// destination events, matching each log's topic[0] against the canonical
// signatures. The first of the three primary signatures found
// determines the outcome; RecoveredFromConsumedNonce may co-occur with any
// of them and never changes the outcome, only whether an informational
// warning should be logged.
func ClassifyReceipt(logs []*types.Log) (outcome store.Outcome, matched bool, recovered bool) {
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case chainio.TopicRelayed:
			if !matched {
				outcome, matched = store.OutcomeForwarded, true
			}
		case chainio.TopicFallbackTriggered:
			if !matched {
				outcome, matched = store.OutcomeFallback, true
			}
		case chainio.TopicOperatorRouted:
			if !matched {
				outcome, matched = store.OutcomeOperatorRouted, true
			}
		case chainio.TopicRecoveredFromConsumedNonce:
			recovered = true
		}
	}
	return outcome, matched, recovered
}
