package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/securevote/relayer/internal/config"
	"github.com/securevote/relayer/internal/forward"
)

// txBackend is the slice of ethclient the serialized transaction path uses.
// Narrowed to an interface so the nonce-ordering discipline is testable
// without a live node.
type txBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Client wraps go-ethereum plus the three contract bindings the relay needs.
//
// All transactions leave from the single relay identity, so the client owns a
// mutex covering "read pending nonce → transaction broadcast". Without it two
// concurrent sends would be built against the same nonce and one would be
// dropped by the network.
type Client struct {
	eth     *ethclient.Client
	backend txBackend

	relayKey  *ecdsa.PrivateKey
	relayAddr common.Address
	chainID   *big.Int

	forwarderAddr common.Address
	vaultAddr     common.Address
	forwarder     *bind.BoundContract
	vault         *bind.BoundContract

	txMu sync.Mutex
}

func NewClient(cfg *config.Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	keyHex := strings.TrimPrefix(cfg.Chain.RelayerKey, "0x")
	relayKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse relayer private key: %w", err)
	}

	forwarderAddr := common.HexToAddress(cfg.Chain.ForwarderAddress)
	vaultAddr := common.HexToAddress(cfg.Chain.VaultAddress)

	return &Client{
		eth:           eth,
		backend:       eth,
		relayKey:      relayKey,
		relayAddr:     crypto.PubkeyToAddress(relayKey.PublicKey),
		chainID:       big.NewInt(cfg.Chain.ChainID),
		forwarderAddr: forwarderAddr,
		vaultAddr:     vaultAddr,
		forwarder:     bind.NewBoundContract(forwarderAddr, forwarderABI, eth, eth, eth),
		vault:         bind.NewBoundContract(vaultAddr, sponsorVaultABI, eth, eth, eth),
	}, nil
}

// CheckNetwork confirms the node serves the configured chain. Submitting a
// correctly signed request to the wrong network would burn the relay's funds
// for nothing, so a mismatch is fatal at startup.
func (c *Client) CheckNetwork(ctx context.Context) error {
	got, err := c.eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if got.Cmp(c.chainID) != 0 {
		return fmt.Errorf("chain id mismatch: node=%s config=%s", got, c.chainID)
	}
	return nil
}

func (c *Client) RelayerAddress() common.Address   { return c.relayAddr }
func (c *Client) ChainID() *big.Int                { return c.chainID }
func (c *Client) ForwarderAddress() common.Address { return c.forwarderAddr }
func (c *Client) VaultAddress() common.Address     { return c.vaultAddr }

// Domain reads the forwarder's EIP-712 domain descriptor (ERC-5267).
func (c *Client) Domain(ctx context.Context) (forward.Domain, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.forwarder.Call(opts, &out, "eip712Domain"); err != nil {
		return forward.Domain{}, fmt.Errorf("eip712Domain: %w", err)
	}
	return forward.Domain{
		Name:              out[1].(string),
		Version:           out[2].(string),
		ChainID:           out[3].(*big.Int),
		VerifyingContract: out[4].(common.Address),
	}, nil
}

// ForwarderNonce returns the sequencer's next expected nonce for a sender.
func (c *Client) ForwarderNonce(ctx context.Context, from common.Address) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.forwarder.Call(opts, &out, "getNonce", from); err != nil {
		return nil, fmt.Errorf("getNonce: %w", err)
	}
	return out[0].(*big.Int), nil
}

// VerifyRequest delegates signature and nonce freshness to the forwarder.
func (c *Client) VerifyRequest(ctx context.Context, req *forward.Request, sig []byte) (bool, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.forwarder.Call(opts, &out, "verify", *req, sig); err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	return out[0].(bool), nil
}

// PackExecute builds the execute(req, signature) calldata. Simulation and the
// real submission share this so the trial run is a byte-identical predictor.
func PackExecute(req *forward.Request, sig []byte) ([]byte, error) {
	data, err := forwarderABI.Pack("execute", *req, sig)
	if err != nil {
		return nil, fmt.Errorf("pack execute: %w", err)
	}
	return data, nil
}

// SimulateExecute runs the wrapped call read-only at the latest block. The
// returned error carries the raw revert payload for the decoder.
func (c *Client) SimulateExecute(ctx context.Context, req *forward.Request, sig []byte, outerGas uint64) error {
	data, err := PackExecute(req, sig)
	if err != nil {
		return err
	}
	msg := ethereum.CallMsg{
		From:  c.relayAddr,
		To:    &c.forwarderAddr,
		Gas:   outerGas,
		Value: req.Value,
		Data:  data,
	}
	_, err = c.eth.CallContract(ctx, msg, nil)
	return err
}

// Execute submits the forwarded request as a real transaction.
func (c *Client) Execute(ctx context.Context, req *forward.Request, sig []byte, outerGas uint64) (*types.Transaction, error) {
	data, err := PackExecute(req, sig)
	if err != nil {
		return nil, err
	}
	return c.sendTx(ctx, c.forwarderAddr, req.Value, outerGas, data)
}

// SettleAndWithdraw charges a settled vote against the room's vault deposit.
// Gas is estimated; the vault call has no inner-call unpredictability.
func (c *Client) SettleAndWithdraw(ctx context.Context, room common.Address, voteID [32]byte, amount *big.Int) (*types.Transaction, error) {
	data, err := sponsorVaultABI.Pack("settleAndWithdraw", room, voteID, amount)
	if err != nil {
		return nil, fmt.Errorf("pack settleAndWithdraw: %w", err)
	}
	return c.sendTx(ctx, c.vaultAddr, nil, 0, data)
}

// sendTx is the single serialization point for relay-identity transactions.
// gasLimit 0 means estimate.
func (c *Client) sendTx(ctx context.Context, to common.Address, value *big.Int, gasLimit uint64, data []byte) (*types.Transaction, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.relayAddr)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	if gasLimit == 0 {
		gasLimit, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  c.relayAddr,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.relayKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	return signed, nil
}

// WaitMined blocks until the transaction is confirmed or ctx expires.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.eth, tx)
}

// MaxCostPerVote reads the room's configured cost ceiling.
func (c *Client) MaxCostPerVote(ctx context.Context, room common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(room, votingRoomABI, c.eth, c.eth, c.eth)
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := contract.Call(opts, &out, "maxCostPerVoteWei"); err != nil {
		return nil, fmt.Errorf("maxCostPerVoteWei: %w", err)
	}
	return out[0].(*big.Int), nil
}

// RoomBalance reads the room's prepaid vault deposit.
func (c *Client) RoomBalance(ctx context.Context, room common.Address) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.vault.Call(opts, &out, "roomBalance", room); err != nil {
		return nil, fmt.Errorf("roomBalance: %w", err)
	}
	return out[0].(*big.Int), nil
}

// OverheadBps reads the vault's current overhead margin in basis points.
func (c *Client) OverheadBps(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.vault.Call(opts, &out, "overheadBps"); err != nil {
		return nil, fmt.Errorf("overheadBps: %w", err)
	}
	return out[0].(*big.Int), nil
}
