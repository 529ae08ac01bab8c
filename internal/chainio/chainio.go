// Package chainio wraps the destination-chain RPC client, signer, and
// contract call encoding that the submitter needs. Client satisfies
// internal/submitter's narrow Chain interface, which is what lets the
// submitter's retry/classification logic be unit tested without a live
// JSON-RPC endpoint. The destination contract itself is consumed, never
// reimplemented: this package only knows how to call it, sign for it, and
// read its event logs.
package chainio

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Event signatures for the four events the destination contract may emit
// for a receiveAndForward call. Topic[0] discriminants are derived once,
// at package init, from these canonical signatures rather than hardcoded
// hash literals, so the mapping from name to topic stays self-documenting.
var (
	sigRelayed                    = []byte("Relayed(uint32,bytes32,bytes32,uint256,uint256)")
	sigFallbackTriggered          = []byte("FallbackTriggered(bytes32,uint256,uint256)")
	sigOperatorRouted             = []byte("OperatorRouted(bytes32,bytes32,uint256,string)")
	sigRecoveredFromConsumedNonce = []byte("RecoveredFromConsumedNonce(bytes32,uint256)")

	TopicRelayed                    = crypto.Keccak256Hash(sigRelayed)
	TopicFallbackTriggered          = crypto.Keccak256Hash(sigFallbackTriggered)
	TopicOperatorRouted             = crypto.Keccak256Hash(sigOperatorRouted)
	TopicRecoveredFromConsumedNonce = crypto.Keccak256Hash(sigRecoveredFromConsumedNonce)
)

const receiveAndForwardSig = "receiveAndForward(bytes,bytes,uint256)"

var receiveAndForwardArgs abi.Arguments

func init() {
	bytesT, _ := abi.NewType("bytes", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	receiveAndForwardArgs = abi.Arguments{
		{Type: bytesT},
		{Type: bytesT},
		{Type: uint256T},
	}
}

// packReceiveAndForward ABI-encodes a call to
// receiveAndForward(message, attestation, relayFee).
func packReceiveAndForward(message, attestation []byte, relayFee *big.Int) ([]byte, error) {
	selector := crypto.Keccak256([]byte(receiveAndForwardSig))[:4]
	packed, err := receiveAndForwardArgs.Pack(message, attestation, relayFee)
	if err != nil {
		return nil, fmt.Errorf("chainio: pack receiveAndForward: %w", err)
	}
	return append(selector, packed...), nil
}

// Client wraps an ethclient.Client with the signer and destination contract
// address the submitter needs. The signer (private key) is owned
// exclusively by this Client, which the submitter in turn owns exclusively
// - sharing it across concurrent callers would race on nonce assignment.
type Client struct {
	eth        *ethclient.Client
	signer     types.Signer
	privateKey *ecdsa.PrivateKey
	fromAddr   common.Address
	chainID    *big.Int
	contract   common.Address
}

// Dial connects to rpcURL and resolves the chain ID and signer address.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, contract common.Address) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chainio: dial %s: %w", rpcURL, err)
	}

	pk, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chainio: parse relayer private key: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chainio: fetch chain id: %w", err)
	}

	return &Client{
		eth:        eth,
		signer:     types.LatestSignerForChainID(chainID),
		privateKey: pk,
		fromAddr:   crypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
		contract:   contract,
	}, nil
}

func (c *Client) Close() { c.eth.Close() }

// SimulateReceiveAndForward performs an eth_call dry run before any gas is
// spent broadcasting. A revert surfaces as a non-nil error whose message is
// the revert reason; callers pass that string to the failure classifier.
func (c *Client) SimulateReceiveAndForward(ctx context.Context, message, attestation []byte, relayFee *big.Int) error {
	data, err := packReceiveAndForward(message, attestation, relayFee)
	if err != nil {
		return err
	}

	msg := ethereum.CallMsg{
		From: c.fromAddr,
		To:   &c.contract,
		Data: data,
	}
	if _, err := c.eth.CallContract(ctx, msg, nil); err != nil {
		return fmt.Errorf("%s", revertReason(err))
	}
	return nil
}

// BroadcastReceiveAndForward estimates gas (with a 20% safety margin to
// absorb estimation drift between simulation and inclusion), signs, and
// submits the transaction, returning its hash immediately - the caller
// must persist it before awaiting confirmation.
func (c *Client) BroadcastReceiveAndForward(ctx context.Context, message, attestation []byte, relayFee *big.Int) (common.Hash, error) {
	data, err := packReceiveAndForward(message, attestation, relayFee)
	if err != nil {
		return common.Hash{}, err
	}

	callMsg := ethereum.CallMsg{
		From: c.fromAddr,
		To:   &c.contract,
		Data: data,
	}
	gasEstimate, err := c.eth.EstimateGas(ctx, callMsg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s", revertReason(err))
	}
	gasLimit := gasEstimate + gasEstimate/5 // 20% safety margin

	nonce, err := c.eth.PendingNonceAt(ctx, c.fromAddr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainio: fetch nonce: %w", err)
	}

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainio: suggest gas tip cap: %w", err)
	}
	feeCap, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainio: suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.contract,
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, c.signer, c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainio: sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("chainio: broadcast: %w", err)
	}

	return signedTx.Hash(), nil
}

// Receipt fetches the transaction receipt for hash, or ethereum.NotFound if
// it hasn't been mined yet.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, hash)
}

// TransactionState reports whether hash is still known to the node (either
// mined or pending in the mempool) without requiring a mined receipt. It is
// used by the submitter's restart recovery sweep to distinguish "not yet
// mined" from "dropped from mempool".
func (c *Client) TransactionState(ctx context.Context, hash common.Hash) (pending bool, found bool, err error) {
	_, isPending, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		if err == ethereum.NotFound {
			return false, false, nil
		}
		return false, false, fmt.Errorf("chainio: transaction by hash: %w", err)
	}
	return isPending, true, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// revertReason extracts the most useful human-readable string from an
// eth_call/eth_estimateGas error, which go-ethereum JSON-RPC clients
// surface as a plain error whose message already embeds the revert reason
// where the node provides one.
func revertReason(err error) string {
	return err.Error()
}
