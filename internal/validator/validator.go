// Package validator parses and validates the attested payload's binary
// message before it is bound to local policy and handed to the submitter.
//
// The message is a packed binary structure with a fixed 148-byte outer
// header followed by a body, all multi-byte integers big-endian, absolute
// byte offsets throughout. Parsing here is pure: no I/O, no mutable state,
// repeated calls with identical input always yield identical output.
package validator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Field byte offsets and sizes within the attested message, per the wire
// format this relay's upstream attestation service emits.
const (
	offsetDestinationDomain = 8
	sizeDestinationDomain   = 4

	offsetNonce = 12
	sizeNonce   = 32

	offsetDestinationCaller = 108
	sizeDestinationCaller   = 32

	offsetMintRecipient = 184
	sizeMintRecipient   = 32

	offsetAmount = 216
	sizeAmount   = 32

	// MinMessageLength is the shortest input that contains every field this
	// validator reads: the header through the amount field, inclusive.
	MinMessageLength = offsetAmount + sizeAmount
)

// LocalDomain is the destination's own domain identifier in the external
// attestation protocol. It is always 0 for this relay.
const LocalDomain = 0

// Policy binds validation to this deployment: the destination domain must
// equal LocalDomain, and the message's destinationCaller/mintRecipient
// fields must reference Router (or, for destinationCaller only, be absent).
type Policy struct {
	// RouterAddress is this relay's on-chain router contract, in the low 20
	// bytes of the bytes32 destinationCaller/mintRecipient fields.
	RouterAddress common.Address
}

// Result is the subset of the parsed message the caller needs to persist
// and submit; the caller is responsible for storing it.
type Result struct {
	Nonce             []byte
	MintRecipient     common.Address
	DestinationDomain uint32
	Amount            *big.Int

	// DestinationCallerIsZero records whether destinationCaller was the
	// all-zero sentinel, so the caller can log a front-running warning
	// without re-parsing the message.
	DestinationCallerIsZero bool
}

// Validate parses message against policy, enforcing every field rule
// above. It never performs I/O and holds no state between calls.
func Validate(message []byte, policy Policy) (*Result, error) {
	if len(message) < MinMessageLength {
		return nil, fmt.Errorf("message too short")
	}

	destDomain := beUint32(message[offsetDestinationDomain : offsetDestinationDomain+sizeDestinationDomain])
	if destDomain != LocalDomain {
		return nil, fmt.Errorf("destination domain %d != %d", destDomain, LocalDomain)
	}

	nonce := make([]byte, sizeNonce)
	copy(nonce, message[offsetNonce:offsetNonce+sizeNonce])

	callerField := message[offsetDestinationCaller : offsetDestinationCaller+sizeDestinationCaller]
	callerIsZero := isAllZero(callerField)
	if !callerIsZero {
		caller := common.BytesToAddress(callerField)
		if !addressesEqual(caller, policy.RouterAddress) {
			return nil, fmt.Errorf("destinationCaller %s != router or zero", caller.Hex())
		}
	}

	recipientField := message[offsetMintRecipient : offsetMintRecipient+sizeMintRecipient]
	mintRecipient := common.BytesToAddress(recipientField)
	if !addressesEqual(mintRecipient, policy.RouterAddress) {
		return nil, fmt.Errorf("mintRecipient %s != router %s", mintRecipient.Hex(), policy.RouterAddress.Hex())
	}

	amount := new(big.Int).SetBytes(message[offsetAmount : offsetAmount+sizeAmount])

	return &Result{
		Nonce:                   nonce,
		MintRecipient:           mintRecipient,
		DestinationDomain:       destDomain,
		Amount:                  amount,
		DestinationCallerIsZero: callerIsZero,
	}, nil
}

func addressesEqual(a, b common.Address) bool {
	// common.Address is a fixed-size byte array, so this comparison is
	// already case-insensitive with respect to hex representation.
	return a == b
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
