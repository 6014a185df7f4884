package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var voteCastID = votingRoomABI.Events["VoteCast"].ID

// VoteCastID returns the topic hash of the room's VoteCast event.
func VoteCastID() common.Hash { return voteCastID }

// VoteCast is the room's action-correlation event. VoteID is the token the
// vault settlement is keyed on.
type VoteCast struct {
	Voter       common.Address
	Round       *big.Int
	CandidateID *big.Int
	VoteID      [32]byte
}

// ParseVoteCast decodes a VoteCast log. Returns an error when the log does
// not carry the expected topic layout.
func ParseVoteCast(lg *types.Log) (*VoteCast, error) {
	if len(lg.Topics) != 3 || lg.Topics[0] != voteCastID {
		return nil, fmt.Errorf("not a VoteCast log")
	}
	vals, err := votingRoomABI.Unpack("VoteCast", lg.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack VoteCast: %w", err)
	}
	return &VoteCast{
		Voter:       common.BytesToAddress(lg.Topics[1].Bytes()),
		Round:       new(big.Int).SetBytes(lg.Topics[2].Bytes()),
		CandidateID: vals[0].(*big.Int),
		VoteID:      vals[1].([32]byte),
	}, nil
}

// FindVoteCast scans a receipt for the VoteCast emitted by the target room.
// Logs from other contracts in the same execution are ignored; the charge
// must bind to the room the request was addressed to.
func FindVoteCast(receipt *types.Receipt, room common.Address) *VoteCast {
	for _, lg := range receipt.Logs {
		if lg.Address != room {
			continue
		}
		ev, err := ParseVoteCast(lg)
		if err != nil {
			continue
		}
		return ev
	}
	return nil
}
