package relay

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/securevote/relayer/internal/forward"
	"github.com/securevote/relayer/internal/revert"
)

// Executor is the transactional slice of the chain client. The implementation
// serializes Execute and SettleAndWithdraw internally (one relay identity,
// one nonce sequence).
type Executor interface {
	SimulateExecute(ctx context.Context, req *forward.Request, sig []byte, outerGas uint64) error
	Execute(ctx context.Context, req *forward.Request, sig []byte, outerGas uint64) (*types.Transaction, error)
	SettleAndWithdraw(ctx context.Context, room common.Address, voteID [32]byte, amount *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Submitter owns the simulate-then-commit step of the pipeline.
type Submitter struct {
	exec           Executor
	decoder        *revert.Decoder
	gasBuffer      uint64
	readTimeout    time.Duration
	confirmTimeout time.Duration
	log            *zap.Logger
}

func NewSubmitter(exec Executor, decoder *revert.Decoder, gasBuffer uint64, readTimeout, confirmTimeout time.Duration, log *zap.Logger) *Submitter {
	return &Submitter{
		exec:           exec,
		decoder:        decoder,
		gasBuffer:      gasBuffer,
		readTimeout:    readTimeout,
		confirmTimeout: confirmTimeout,
		log:            log,
	}
}

// OuterGas is the limit for the wrapping execute call: the caller-approved
// inner allowance plus a fixed buffer for the forwarder's own signature and
// nonce bookkeeping. The buffer must be generous enough that the wrapper
// never starves the inner call.
func (s *Submitter) OuterGas(req *forward.Request) uint64 {
	return req.Gas.Uint64() + s.gasBuffer
}

// Simulate runs the wrapped execute call read-only with the exact arguments
// the real submission will use. A failure here costs nothing.
func (s *Submitter) Simulate(ctx context.Context, req *forward.Request, sig []byte) *Error {
	simCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	err := s.exec.SimulateExecute(simCtx, req, sig, s.OuterGas(req))
	if err == nil {
		return nil
	}
	if decoded := s.decoder.FromError(err); decoded != nil {
		e := rejectf(KindSimulationReverted, "simulation reverted")
		e.Revert = decoded
		return e
	}
	if simCtx.Err() != nil {
		return transient("simulation", simCtx.Err())
	}
	return rejectf(KindSimulationReverted, "simulation failed: %v", err)
}

// Submit broadcasts the execute transaction and waits for confirmation.
// There is no automatic retry at any point: a fresh signed request with an
// updated nonce is required from the voter after any failure.
func (s *Submitter) Submit(ctx context.Context, req *forward.Request, sig []byte) (*types.Transaction, *types.Receipt, *Error) {
	tx, err := s.exec.Execute(ctx, req, sig, s.OuterGas(req))
	if err != nil {
		if decoded := s.decoder.FromError(err); decoded != nil {
			e := rejectf(KindSubmissionFailed, "broadcast rejected")
			e.Revert = decoded
			return nil, nil, e
		}
		return nil, nil, rejectf(KindSubmissionFailed, "broadcast failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	receipt, err := s.exec.WaitMined(waitCtx, tx)
	if err != nil {
		// The transaction is out. It may still land, so this is neither
		// retry-safe nor definitively executed.
		e := transient("wait for confirmation", err)
		e.SafeToRetry = false
		e.Message += "; transaction " + tx.Hash().Hex() + " may still confirm"
		return tx, nil, e
	}

	if receipt.Status == types.ReceiptStatusFailed {
		// Receipts carry no revert payload; re-run the simulation to
		// harvest a reason for diagnostics.
		e := rejectf(KindSubmissionFailed, "transaction %s reverted on-chain", tx.Hash().Hex())
		simCtx, simCancel := context.WithTimeout(ctx, s.readTimeout)
		if simErr := s.exec.SimulateExecute(simCtx, req, sig, s.OuterGas(req)); simErr != nil {
			e.Revert = s.decoder.FromError(simErr)
		}
		simCancel()
		return tx, receipt, e
	}

	s.log.Info("execute confirmed",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
	)
	return tx, receipt, nil
}
