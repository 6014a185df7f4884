package relay

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/securevote/relayer/internal/chain"
	"github.com/securevote/relayer/internal/revert"
)

const basisPoints = 10_000

// Engine bills a confirmed vote against the room's vault deposit. Everything
// here runs strictly after on-chain success: a failure at any step leaves the
// vote recorded but unbilled, which is surfaced loudly and reconciled by
// hand, never retried automatically (a blind retry risks double charging).
type Engine struct {
	exec           Executor
	ledger         LedgerReader
	records        *RecordStore
	decoder        *revert.Decoder
	readTimeout    time.Duration
	confirmTimeout time.Duration
	log            *zap.Logger
}

func NewEngine(exec Executor, ledger LedgerReader, records *RecordStore, decoder *revert.Decoder, readTimeout, confirmTimeout time.Duration, log *zap.Logger) *Engine {
	return &Engine{
		exec:           exec,
		ledger:         ledger,
		records:        records,
		decoder:        decoder,
		readTimeout:    readTimeout,
		confirmTimeout: confirmTimeout,
		log:            log,
	}
}

// Settle computes and withdraws the charge for one confirmed execution.
// pre carries the ceiling observed at precondition time for the 2x bound.
func (e *Engine) Settle(ctx context.Context, room common.Address, pre *Precheck, tx *types.Transaction, receipt *types.Receipt) (*Record, *Error) {
	txHash := tx.Hash().Hex()

	// 1. Correlate: the room must have emitted its VoteCast during this
	// execution. Without it there is nothing to key the charge on.
	ev := chain.FindVoteCast(receipt, room)
	if ev == nil {
		e.reconcile(ctx, "", room, txHash, string(KindActionIdNotFound),
			"execution confirmed but no VoteCast from target room")
		return nil, billingf(KindActionIdNotFound,
			"vote executed in %s but no correlating event was emitted by the room; billing requires manual reconciliation", txHash)
	}
	voteID := hexutil.Encode(ev.VoteID[:])

	// 2. Actual cost from the receipt.
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	actualCost := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)

	// 3. Overhead margin, read fresh from the vault (the sponsor may have
	// changed it since the precondition check).
	readCtx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()
	bps, err := e.ledger.OverheadBps(readCtx)
	if err != nil {
		e.reconcile(ctx, voteID, room, txHash, string(KindTimeout), "read overheadBps: "+err.Error())
		t := transient("read overhead bps", err)
		t.Executed = true
		t.SafeToRetry = false
		return nil, t
	}
	overhead := new(big.Int).Div(new(big.Int).Mul(actualCost, bps), big.NewInt(basisPoints))

	// 4. Total charge.
	charged := new(big.Int).Add(actualCost, overhead)

	// Volatility bound: the precondition promised the balance covered twice
	// the ceiling. A charge beyond that bound was never anticipated and is
	// not billed silently.
	if !pre.Skipped {
		bound := new(big.Int).Lsh(pre.Ceiling, 1)
		if charged.Cmp(bound) > 0 {
			e.reconcile(ctx, voteID, room, txHash, string(KindInsufficientBalanceAtSettlement),
				"charge "+charged.String()+" exceeds 2x ceiling "+pre.Ceiling.String())
			return nil, billingf(KindInsufficientBalanceAtSettlement,
				"computed charge %s exceeds the anticipated bound of 2 × ceiling %s", charged, pre.Ceiling)
		}
	}

	// 5. Re-read the balance; never withdraw more than the room holds.
	balanceBefore, err := e.ledger.RoomBalance(readCtx, room)
	if err != nil {
		e.reconcile(ctx, voteID, room, txHash, string(KindTimeout), "read balance: "+err.Error())
		t := transient("read room balance at settlement", err)
		t.Executed = true
		t.SafeToRetry = false
		return nil, t
	}
	if balanceBefore.Cmp(charged) < 0 {
		e.reconcile(ctx, voteID, room, txHash, string(KindInsufficientBalanceAtSettlement),
			"balance "+balanceBefore.String()+" < charge "+charged.String())
		return nil, billingf(KindInsufficientBalanceAtSettlement,
			"room balance %s cannot cover charge %s; vote %s stands unbilled", balanceBefore, charged, voteID)
	}

	// 6. Single withdrawal for exactly charged, keyed on the voteId. The
	// vault rejects a duplicate voteId; the local claim is a cheaper first
	// line for the same guarantee.
	if claimed, err := e.records.MarkSettling(ctx, voteID); err != nil {
		e.log.Warn("settlement idempotency guard unavailable, relying on ledger",
			zap.String("voteId", voteID), zap.Error(err))
	} else if !claimed {
		return nil, billingf(KindSettlementRejectedByLedger,
			"voteId %s was already submitted for settlement", voteID)
	}

	settleTx, err := e.exec.SettleAndWithdraw(ctx, room, ev.VoteID, charged)
	if err != nil {
		return nil, e.settleFailure(ctx, voteID, room, txHash, err)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer waitCancel()
	settleReceipt, err := e.exec.WaitMined(waitCtx, settleTx)
	if err != nil {
		e.reconcile(ctx, voteID, room, txHash, string(KindTimeout),
			"settlement "+settleTx.Hash().Hex()+" unconfirmed: "+err.Error())
		t := transient("wait for settlement confirmation", err)
		t.Executed = true
		t.SafeToRetry = false
		return nil, t
	}
	if settleReceipt.Status == types.ReceiptStatusFailed {
		e.reconcile(ctx, voteID, room, txHash, string(KindSettlementRejectedByLedger),
			"settlement tx "+settleTx.Hash().Hex()+" reverted")
		return nil, billingf(KindSettlementRejectedByLedger,
			"vault rejected settlement %s for vote %s", settleTx.Hash().Hex(), voteID)
	}

	balanceAfter, err := e.ledger.RoomBalance(ctx, room)
	if err != nil {
		// The withdrawal itself confirmed; report the arithmetic result.
		balanceAfter = new(big.Int).Sub(balanceBefore, charged)
	}

	// 7. Audit record.
	rec := &Record{
		VoteID:            voteID,
		Room:              room.Hex(),
		TxHash:            txHash,
		SettleTxHash:      settleTx.Hash().Hex(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: price.String(),
		ActualCost:        actualCost.String(),
		OverheadWei:       overhead.String(),
		Charged:           charged.String(),
		BalanceBefore:     balanceBefore.String(),
		BalanceAfter:      balanceAfter.String(),
		SettledAt:         time.Now().Unix(),
	}
	if err := e.records.SaveRecord(ctx, rec); err != nil {
		e.log.Warn("audit record not persisted", zap.String("voteId", voteID), zap.Error(err))
	}
	e.log.Info("vote settled",
		zap.String("voteId", voteID),
		zap.String("room", room.Hex()),
		zap.String("charged", charged.String()),
		zap.String("balanceAfter", balanceAfter.String()),
	)
	return rec, nil
}

// settleFailure classifies a failed settleAndWithdraw broadcast.
func (e *Engine) settleFailure(ctx context.Context, voteID string, room common.Address, txHash string, err error) *Error {
	if decoded := e.decoder.FromError(err); decoded != nil {
		e.reconcile(ctx, voteID, room, txHash, string(KindSettlementRejectedByLedger), decoded.String())
		out := billingf(KindSettlementRejectedByLedger, "vault rejected settlement for vote %s", voteID)
		out.Revert = decoded
		return out
	}
	e.reconcile(ctx, voteID, room, txHash, string(KindSettlementRejectedByLedger), err.Error())
	return billingf(KindSettlementRejectedByLedger, "settlement broadcast failed: %v", err)
}

func (e *Engine) reconcile(_ context.Context, voteID string, room common.Address, txHash, reason, detail string) {
	// Detached context: the entry must land even when the request context
	// is already past its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := Reconciliation{
		VoteID:   voteID,
		Room:     room.Hex(),
		TxHash:   txHash,
		Reason:   reason,
		Detail:   detail,
		Observed: time.Now().Unix(),
	}
	if err := e.records.PushReconciliation(ctx, entry); err != nil {
		e.log.Error("reconciliation entry not persisted",
			zap.String("voteId", voteID), zap.String("reason", reason), zap.Error(err))
	}
	e.log.Error("vote executed but unbilled",
		zap.String("voteId", voteID),
		zap.String("room", room.Hex()),
		zap.String("tx", txHash),
		zap.String("reason", reason),
		zap.String("detail", detail),
	)
}
