package relay

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/redis/go-redis/v9"

	"github.com/securevote/relayer/internal/chain"
	"github.com/securevote/relayer/internal/forward"
	"github.com/securevote/relayer/internal/revert"
)

var (
	testRoom  = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	testVoter = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func wei(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return n
}

// ── ledger mock ───────────────────────────────────────────────────────────────

type mockLedger struct {
	mu sync.Mutex

	ceiling    *big.Int
	ceilingErr error

	// balances are consumed in call order; the last entry repeats.
	balances   []*big.Int
	balanceErr error

	bps    *big.Int
	bpsErr error
}

func (m *mockLedger) MaxCostPerVote(ctx context.Context, room common.Address) (*big.Int, error) {
	if m.ceilingErr != nil {
		return nil, m.ceilingErr
	}
	return new(big.Int).Set(m.ceiling), nil
}

func (m *mockLedger) RoomBalance(ctx context.Context, room common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	if len(m.balances) == 0 {
		return nil, errors.New("mockLedger: no balance programmed")
	}
	out := m.balances[0]
	if len(m.balances) > 1 {
		m.balances = m.balances[1:]
	}
	return new(big.Int).Set(out), nil
}

func (m *mockLedger) OverheadBps(ctx context.Context) (*big.Int, error) {
	if m.bpsErr != nil {
		return nil, m.bpsErr
	}
	return new(big.Int).Set(m.bps), nil
}

// ── executor mock ─────────────────────────────────────────────────────────────

type mockExec struct {
	mu sync.Mutex

	simErr   error
	simCalls int

	execTx    *types.Transaction
	execErr   error
	execCalls int

	settleTx     *types.Transaction
	settleErr    error
	settleCalls  int
	settleAmount *big.Int
	settleVoteID [32]byte

	receipts map[common.Hash]*types.Receipt
	waitErrs map[common.Hash]error
}

func (m *mockExec) SimulateExecute(ctx context.Context, req *forward.Request, sig []byte, outerGas uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simCalls++
	return m.simErr
}

func (m *mockExec) Execute(ctx context.Context, req *forward.Request, sig []byte, outerGas uint64) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execCalls++
	if m.execErr != nil {
		return nil, m.execErr
	}
	return m.execTx, nil
}

func (m *mockExec) SettleAndWithdraw(ctx context.Context, room common.Address, voteID [32]byte, amount *big.Int) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settleCalls++
	m.settleAmount = new(big.Int).Set(amount)
	m.settleVoteID = voteID
	if m.settleErr != nil {
		return nil, m.settleErr
	}
	return m.settleTx, nil
}

func (m *mockExec) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.waitErrs[tx.Hash()]; ok {
		return nil, err
	}
	receipt, ok := m.receipts[tx.Hash()]
	if !ok {
		return nil, errors.New("mockExec: no receipt programmed for " + tx.Hash().Hex())
	}
	return receipt, nil
}

// ── verifier mock ─────────────────────────────────────────────────────────────

type mockVerifier struct {
	ok    bool
	err   error
	calls int
}

func (m *mockVerifier) VerifyRequest(ctx context.Context, req *forward.Request, sig []byte) (bool, error) {
	m.calls++
	return m.ok, m.err
}

// ── fixtures ──────────────────────────────────────────────────────────────────

// rpcDataError mimics geth's JSON-RPC revert error shape.
type rpcDataError struct {
	msg  string
	data interface{}
}

func (e rpcDataError) Error() string          { return e.msg }
func (e rpcDataError) ErrorData() interface{} { return e.data }

func testDecoder() *revert.Decoder {
	return revert.NewDecoder(chain.VotingRoomABI(), chain.SponsorVaultABI())
}

func testRecords(t *testing.T) *RecordStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRecordStore(rdb)
}

func makeTx(nonce uint64) *types.Transaction {
	to := testRoom
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      600_000,
		GasPrice: wei("2000000000"),
	})
}

// voteCastReceipt builds a successful receipt carrying the room's VoteCast.
func voteCastReceipt(t *testing.T, gasUsed uint64, price *big.Int, voteID [32]byte) *types.Receipt {
	t.Helper()
	data, err := chain.VotingRoomABI().Events["VoteCast"].Inputs.NonIndexed().Pack(big.NewInt(1), voteID)
	if err != nil {
		t.Fatalf("pack VoteCast: %v", err)
	}
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           gasUsed,
		EffectiveGasPrice: price,
		Logs: []*types.Log{{
			Address: testRoom,
			Topics: []common.Hash{
				chain.VoteCastID(),
				common.BytesToHash(testVoter.Bytes()),
				common.BigToHash(big.NewInt(1)),
			},
			Data: data,
		}},
	}
}

func emptyReceipt(gasUsed uint64, price *big.Int) *types.Receipt {
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           gasUsed,
		EffectiveGasPrice: price,
	}
}
