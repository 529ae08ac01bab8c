package validator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func routerAddr() common.Address {
	return common.HexToAddress("0x1111222233334444555566667777888899990000")
}

// buildMessage constructs a minimal well-formed message of exactly
// MinMessageLength bytes, with destinationCaller and mintRecipient
// populated from the given 20-byte addresses (zero-padded bytes32).
func buildMessage(destDomain uint32, destCaller, mintRecipient common.Address, destCallerZero bool, amount *big.Int) []byte {
	msg := make([]byte, MinMessageLength)
	msg[offsetDestinationDomain] = byte(destDomain >> 24)
	msg[offsetDestinationDomain+1] = byte(destDomain >> 16)
	msg[offsetDestinationDomain+2] = byte(destDomain >> 8)
	msg[offsetDestinationDomain+3] = byte(destDomain)

	if !destCallerZero {
		copy(msg[offsetDestinationCaller+12:offsetDestinationCaller+32], destCaller.Bytes())
	}
	copy(msg[offsetMintRecipient+12:offsetMintRecipient+32], mintRecipient.Bytes())

	if amount != nil {
		b := amount.Bytes()
		copy(msg[offsetAmount+sizeAmount-len(b):offsetAmount+sizeAmount], b)
	}
	return msg
}

func TestValidate_MessageTooShort(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	msg := buildMessage(LocalDomain, routerAddr(), routerAddr(), false, big.NewInt(1))
	msg = msg[:MinMessageLength-1]

	_, err := Validate(msg, policy)
	if err == nil || err.Error() != "message too short" {
		t.Fatalf("expected 'message too short', got %v", err)
	}
}

func TestValidate_MinimumLengthAccepted(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	msg := buildMessage(LocalDomain, routerAddr(), routerAddr(), false, big.NewInt(12345))

	result, err := Validate(msg, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DestinationDomain != LocalDomain {
		t.Errorf("got domain %d", result.DestinationDomain)
	}
	if result.Amount.Cmp(big.NewInt(12345)) != 0 {
		t.Errorf("got amount %s", result.Amount)
	}
	if result.DestinationCallerIsZero {
		t.Error("expected destinationCallerIsZero false")
	}
}

func TestValidate_DestinationCallerZero_Accepted(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	msg := buildMessage(LocalDomain, common.Address{}, routerAddr(), true, big.NewInt(1))

	result, err := Validate(msg, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.DestinationCallerIsZero {
		t.Error("expected destinationCallerIsZero true")
	}
}

func TestValidate_DestinationCallerWrong_Rejected(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	other := common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	msg := buildMessage(LocalDomain, other, routerAddr(), false, big.NewInt(1))

	_, err := Validate(msg, policy)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate_WrongDestinationDomain(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	msg := buildMessage(7, routerAddr(), routerAddr(), false, big.NewInt(1))

	_, err := Validate(msg, policy)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate_MintRecipientMismatch(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	other := common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	msg := buildMessage(LocalDomain, routerAddr(), other, false, big.NewInt(1))

	_, err := Validate(msg, policy)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate_Deterministic(t *testing.T) {
	policy := Policy{RouterAddress: routerAddr()}
	msg := buildMessage(LocalDomain, routerAddr(), routerAddr(), false, big.NewInt(999))

	r1, err1 := Validate(msg, policy)
	r2, err2 := Validate(msg, policy)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if r1.Amount.Cmp(r2.Amount) != 0 || r1.MintRecipient != r2.MintRecipient {
		t.Error("Validate is not pure: repeated calls diverged")
	}
}
