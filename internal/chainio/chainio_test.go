package chainio

import (
	"math/big"
	"testing"
)

func TestPackReceiveAndForward_SelectorIsStable(t *testing.T) {
	data, err := packReceiveAndForward([]byte("msg"), []byte("att"), big.NewInt(100))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(data) < 4 {
		t.Fatalf("packed data too short: %d bytes", len(data))
	}

	data2, err := packReceiveAndForward([]byte("msg"), []byte("att"), big.NewInt(100))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	for i := 0; i < 4; i++ {
		if data[i] != data2[i] {
			t.Fatalf("selector not deterministic: %x vs %x", data[:4], data2[:4])
		}
	}
}

func TestPackReceiveAndForward_VaryingInputsVaryEncoding(t *testing.T) {
	data1, err := packReceiveAndForward([]byte("msg-a"), []byte("att"), big.NewInt(1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	data2, err := packReceiveAndForward([]byte("msg-b"), []byte("att"), big.NewInt(1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if string(data1) == string(data2) {
		t.Fatal("expected different message payloads to pack differently")
	}
}

func TestEventTopics_AreDistinct(t *testing.T) {
	topics := []struct {
		name string
		hash [32]byte
	}{
		{"Relayed", TopicRelayed},
		{"FallbackTriggered", TopicFallbackTriggered},
		{"OperatorRouted", TopicOperatorRouted},
		{"RecoveredFromConsumedNonce", TopicRecoveredFromConsumedNonce},
	}
	seen := make(map[[32]byte]string)
	for _, tc := range topics {
		if existing, ok := seen[tc.hash]; ok {
			t.Fatalf("%s collides with %s", tc.name, existing)
		}
		seen[tc.hash] = tc.name
	}
}
