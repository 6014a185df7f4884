package relay

import (
	"context"
	"testing"
)

func TestMarkSettling_ClaimOnce(t *testing.T) {
	records := testRecords(t)
	ctx := context.Background()

	claimed, err := records.MarkSettling(ctx, "0xaa11")
	if err != nil {
		t.Fatal(err)
	}
	if !claimed {
		t.Fatal("first claim refused")
	}

	claimed, err = records.MarkSettling(ctx, "0xaa11")
	if err != nil {
		t.Fatal(err)
	}
	if claimed {
		t.Error("duplicate voteId claimed twice")
	}
}

func TestRecord_SaveGet(t *testing.T) {
	records := testRecords(t)
	ctx := context.Background()

	in := &Record{
		VoteID:        "0xbb22",
		Room:          testRoom.Hex(),
		TxHash:        "0x01",
		SettleTxHash:  "0x02",
		GasUsed:       100_000,
		ActualCost:    "200000000000000",
		OverheadWei:   "20000000000000",
		Charged:       "220000000000000",
		BalanceBefore: "1000000000000000",
		BalanceAfter:  "780000000000000",
	}
	if err := records.SaveRecord(ctx, in); err != nil {
		t.Fatal(err)
	}

	out, err := records.GetRecord(ctx, "0xbb22")
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("record not found")
	}
	if out.Charged != in.Charged || out.GasUsed != in.GasUsed {
		t.Errorf("round trip changed the record: %+v", out)
	}
}

func TestRecord_GetAbsent(t *testing.T) {
	records := testRecords(t)
	out, err := records.GetRecord(context.Background(), "0xmissing")
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("got %+v want nil", out)
	}
}

func TestReconciliation_Queue(t *testing.T) {
	records := testRecords(t)
	ctx := context.Background()

	entries := []Reconciliation{
		{VoteID: "0x01", Reason: string(KindActionIdNotFound)},
		{VoteID: "0x02", Reason: string(KindSettlementRejectedByLedger)},
	}
	for _, e := range entries {
		if err := records.PushReconciliation(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := records.PendingReconciliations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries want 2", len(got))
	}
	if got[0].VoteID != "0x01" || got[1].VoteID != "0x02" {
		t.Errorf("queue order lost: %+v", got)
	}

	// Listing must not consume the queue.
	again, err := records.PendingReconciliations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 {
		t.Errorf("listing drained the queue: %d left", len(again))
	}
}
