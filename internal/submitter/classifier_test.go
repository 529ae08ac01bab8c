package submitter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SeungheonOh/xreserve-relay/internal/chainio"
	"github.com/SeungheonOh/xreserve-relay/internal/store"
)

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  string
		want Classification
	}{
		{"transfer settled", "execution reverted: transfer settled", Terminal},
		{"nonce variant", "revert: nonce already used", Terminal},
		{"used nonce variant", "already used nonce for domain", Terminal},
		{"invalid domain", "INVALID DESTINATION DOMAIN", Terminal},
		{"invalid caller", "invalid destination caller supplied", Terminal},
		{"invalid recipient", "invalid mint recipient", Terminal},
		{"invalid fee", "invalid fee amount", Terminal},
		{"rpc timeout", "context deadline exceeded", Transient},
		{"connection refused", "dial tcp: connection refused", Transient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyFailure(tc.err); got != tc.want {
				t.Errorf("ClassifyFailure(%q) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func logWithTopic(topic common.Hash, extra ...common.Hash) *types.Log {
	return &types.Log{Topics: append([]common.Hash{topic}, extra...)}
}

func TestClassifyReceipt_Forwarded(t *testing.T) {
	logs := []*types.Log{logWithTopic(chainio.TopicRelayed)}
	outcome, matched, recovered := ClassifyReceipt(logs)
	if !matched || outcome != store.OutcomeForwarded || recovered {
		t.Fatalf("got outcome=%v matched=%v recovered=%v", outcome, matched, recovered)
	}
}

func TestClassifyReceipt_FallbackAndRecovered(t *testing.T) {
	logs := []*types.Log{
		logWithTopic(chainio.TopicFallbackTriggered),
		logWithTopic(chainio.TopicRecoveredFromConsumedNonce),
	}
	outcome, matched, recovered := ClassifyReceipt(logs)
	if !matched || outcome != store.OutcomeFallback || !recovered {
		t.Fatalf("got outcome=%v matched=%v recovered=%v", outcome, matched, recovered)
	}
}

func TestClassifyReceipt_OperatorRouted(t *testing.T) {
	logs := []*types.Log{logWithTopic(chainio.TopicOperatorRouted)}
	outcome, matched, _ := ClassifyReceipt(logs)
	if !matched || outcome != store.OutcomeOperatorRouted {
		t.Fatalf("got outcome=%v matched=%v", outcome, matched)
	}
}

func TestClassifyReceipt_NoKnownTopics(t *testing.T) {
	logs := []*types.Log{logWithTopic(common.HexToHash("0xdeadbeef"))}
	_, matched, recovered := ClassifyReceipt(logs)
	if matched || recovered {
		t.Fatalf("expected no match, got matched=%v recovered=%v", matched, recovered)
	}
}

func TestClassifyReceipt_EmptyLogsIgnored(t *testing.T) {
	logs := []*types.Log{nil, {Topics: nil}}
	_, matched, _ := ClassifyReceipt(logs)
	if matched {
		t.Fatal("expected no match for nil/empty logs")
	}
}

func TestClassifyReceipt_FirstMatchWins(t *testing.T) {
	logs := []*types.Log{
		logWithTopic(chainio.TopicRelayed),
		logWithTopic(chainio.TopicFallbackTriggered),
	}
	outcome, matched, _ := ClassifyReceipt(logs)
	if !matched || outcome != store.OutcomeForwarded {
		t.Fatalf("expected first match (forwarded) to win, got %v", outcome)
	}
}
