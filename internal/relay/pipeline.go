package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/securevote/relayer/internal/forward"
)

// Verifier delegates signature and replay-nonce correctness to the
// sequencing forwarder contract.
type Verifier interface {
	VerifyRequest(ctx context.Context, req *forward.Request, sig []byte) (bool, error)
}

// Result is the success response of one relayed and settled vote.
type Result struct {
	TxHash            string `json:"transactionHash"`
	Status            uint64 `json:"status"`
	GasPrice          string `json:"gasPrice"`
	ActualGasCost     string `json:"actualGasCost"`
	OverheadWei       string `json:"overheadWei"`
	ChargedAmount     string `json:"chargedAmount"`
	RoomBalanceBefore string `json:"roomBalanceBefore"`
	RoomBalanceAfter  string `json:"roomBalanceAfter"`
	SettleTxHash      string `json:"settlementTransactionHash"`
	SettleStatus      uint64 `json:"settlementStatus"`
}

// Pipeline runs one relay request end to end:
// validate → verify → precheck → simulate → submit → settle.
// The service holds no state of its own between requests; a crash between
// submission and settlement leaves an executed, unbilled vote in the
// reconciliation queue, not a corrupted balance.
type Pipeline struct {
	validator   *Validator
	verifier    Verifier
	prechecker  *Prechecker
	submitter   *Submitter
	engine      *Engine
	readTimeout time.Duration
	rooms       *roomLocks
	log         *zap.Logger
}

func NewPipeline(validator *Validator, verifier Verifier, prechecker *Prechecker, submitter *Submitter, engine *Engine, readTimeout time.Duration, log *zap.Logger) *Pipeline {
	return &Pipeline{
		validator:   validator,
		verifier:    verifier,
		prechecker:  prechecker,
		submitter:   submitter,
		engine:      engine,
		readTimeout: readTimeout,
		rooms:       newRoomLocks(),
		log:         log,
	}
}

// Relay processes one signed request. The returned *Error is nil exactly when
// the vote executed AND was billed.
func (p *Pipeline) Relay(ctx context.Context, req *forward.Request, sig []byte) (*Result, *Error) {
	// 1. Free checks first; no external calls yet.
	if rejErr := p.validator.Validate(req, sig); rejErr != nil {
		return nil, rejErr
	}

	// 2. Signature and replay nonce, judged by the forwarder itself. This
	// must precede anything that spends.
	verifyCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	ok, err := p.verifier.VerifyRequest(verifyCtx, req, sig)
	cancel()
	if err != nil {
		return nil, transient("verify signature", err)
	}
	if !ok {
		return nil, rejectf(KindSignatureMismatch,
			"forwarder rejected the signature or nonce for %s", req.From.Hex())
	}

	// Per-room serialization from here through settlement (see roomLocks).
	unlock := p.rooms.acquire(req.To)
	defer unlock()

	// 3. Budget precondition.
	preCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	pre, rejErr := p.prechecker.Check(preCtx, req.To)
	cancel()
	if rejErr != nil {
		return nil, rejErr
	}

	// 4. Dry run with the exact submission arguments.
	if rejErr := p.submitter.Simulate(ctx, req, sig); rejErr != nil {
		return nil, rejErr
	}

	// 5. Real execution.
	tx, receipt, rejErr := p.submitter.Submit(ctx, req, sig)
	if rejErr != nil {
		return nil, rejErr
	}

	// 6. Settlement.
	rec, rejErr := p.engine.Settle(ctx, req.To, pre, tx, receipt)
	if rejErr != nil {
		return nil, rejErr
	}

	return &Result{
		TxHash:            rec.TxHash,
		Status:            receipt.Status,
		GasPrice:          rec.EffectiveGasPrice,
		ActualGasCost:     rec.ActualCost,
		OverheadWei:       rec.OverheadWei,
		ChargedAmount:     rec.Charged,
		RoomBalanceBefore: rec.BalanceBefore,
		RoomBalanceAfter:  rec.BalanceAfter,
		SettleTxHash:      rec.SettleTxHash,
		SettleStatus:      1,
	}, nil
}
