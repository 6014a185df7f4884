package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key templates
const (
	recordKeyFmt = "settle:record:%s" // %s = voteId (0x-hex)
	seenKeyFmt   = "settle:seen:%s"
	reconcileKey = "settle:reconcile" // list of Reconciliation JSON
)

// Record is the audit trail of one completed settlement. Amounts are decimal
// wei strings so the JSON survives any numeric precision.
type Record struct {
	VoteID            string `json:"vote_id"`
	Room              string `json:"room"`
	TxHash            string `json:"tx_hash"`
	SettleTxHash      string `json:"settle_tx_hash"`
	GasUsed           uint64 `json:"gas_used"`
	EffectiveGasPrice string `json:"effective_gas_price"`
	ActualCost        string `json:"actual_cost"`
	OverheadWei       string `json:"overhead_wei"`
	Charged           string `json:"charged"`
	BalanceBefore     string `json:"balance_before"`
	BalanceAfter      string `json:"balance_after"`
	SettledAt         int64  `json:"settled_at"`
}

// Reconciliation marks a vote that executed on-chain but could not be billed.
// These are never auto-retried; an operator drains the queue by hand.
type Reconciliation struct {
	VoteID   string `json:"vote_id"`
	Room     string `json:"room"`
	TxHash   string `json:"tx_hash"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail"`
	Observed int64  `json:"observed"`
}

// RecordStore persists settlement outcomes in Redis.
type RecordStore struct {
	rdb *redis.Client
}

func NewRecordStore(rdb *redis.Client) *RecordStore {
	return &RecordStore{rdb: rdb}
}

// MarkSettling claims a voteId for settlement. Returns false when the id was
// already claimed: the withdrawal for it has been attempted before, and a
// second attempt risks double charging.
func (s *RecordStore) MarkSettling(ctx context.Context, voteID string) (bool, error) {
	return s.rdb.SetNX(ctx, fmt.Sprintf(seenKeyFmt, voteID), time.Now().Unix(), 0).Result()
}

// SaveRecord stores the audit record for a settled vote.
func (s *RecordStore) SaveRecord(ctx context.Context, r *Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.rdb.Set(ctx, fmt.Sprintf(recordKeyFmt, r.VoteID), string(raw), 0).Err()
}

// GetRecord fetches a settlement record, nil when absent.
func (s *RecordStore) GetRecord(ctx context.Context, voteID string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(recordKeyFmt, voteID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &r, nil
}

// PushReconciliation appends an unbilled-vote entry to the manual queue.
func (s *RecordStore) PushReconciliation(ctx context.Context, r Reconciliation) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reconciliation: %w", err)
	}
	return s.rdb.RPush(ctx, reconcileKey, string(raw)).Err()
}

// PendingReconciliations lists the queue without consuming it.
func (s *RecordStore) PendingReconciliations(ctx context.Context) ([]Reconciliation, error) {
	raws, err := s.rdb.LRange(ctx, reconcileKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Reconciliation, 0, len(raws))
	for _, raw := range raws {
		var r Reconciliation
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
