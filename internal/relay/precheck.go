package relay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// LedgerReader is the read-only slice of the chain client the precondition
// checker and settlement engine consume. Narrowed for test mocks.
type LedgerReader interface {
	MaxCostPerVote(ctx context.Context, room common.Address) (*big.Int, error)
	RoomBalance(ctx context.Context, room common.Address) (*big.Int, error)
	OverheadBps(ctx context.Context) (*big.Int, error)
}

// Precheck holds the observed values the budget precondition was judged on.
// Ceiling is carried forward so settlement can enforce the same 2x bound.
type Precheck struct {
	Ceiling *big.Int
	Balance *big.Int
	Skipped bool
}

// Prechecker guards the relay's funds: it refuses to spend gas for a room
// whose prepaid deposit could not plausibly cover the charge.
type Prechecker struct {
	ledger LedgerReader
	log    *zap.Logger
}

func NewPrechecker(ledger LedgerReader, log *zap.Logger) *Prechecker {
	return &Prechecker{ledger: ledger, log: log}
}

// Check reads the room's cost ceiling and vault balance. A zero ceiling means
// the room is not configured yet and passes by default (logged). Otherwise the
// balance must cover twice the ceiling: one margin for a settlement racing
// this check, one for gas price movement before confirmation.
func (p *Prechecker) Check(ctx context.Context, room common.Address) (*Precheck, *Error) {
	ceiling, err := p.ledger.MaxCostPerVote(ctx, room)
	if err != nil {
		return nil, transient("read cost ceiling", err)
	}
	if ceiling.Sign() == 0 {
		p.log.Warn("cost ceiling unset, skipping balance precondition",
			zap.String("room", room.Hex()),
		)
		return &Precheck{Ceiling: ceiling, Skipped: true}, nil
	}

	balance, err := p.ledger.RoomBalance(ctx, room)
	if err != nil {
		return nil, transient("read room balance", err)
	}

	required := new(big.Int).Lsh(ceiling, 1) // 2 × ceiling
	if balance.Cmp(required) < 0 {
		return nil, rejectf(KindInsufficientRoomBalance,
			"room balance %s below required %s (2 × ceiling %s)",
			balance, required, ceiling)
	}
	return &Precheck{Ceiling: ceiling, Balance: balance}, nil
}
