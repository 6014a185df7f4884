// roomctl prints a room's billing state: vault deposit, cost ceiling and
// current overhead margin.
//
//	RPC_URL=... SPONSOR_VAULT_ADDRESS=... roomctl <room-address>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/securevote/relayer/internal/chain"
)

func main() {
	if len(os.Args) != 2 || !common.IsHexAddress(os.Args[1]) {
		fmt.Fprintln(os.Stderr, "usage: roomctl <room-address>")
		os.Exit(2)
	}
	room := common.HexToAddress(os.Args[1])

	eth, err := ethclient.Dial(os.Getenv("RPC_URL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial rpc:", err)
		os.Exit(1)
	}
	vaultAddr := common.HexToAddress(os.Getenv("SPONSOR_VAULT_ADDRESS"))

	ctx := context.Background()
	opts := &bind.CallOpts{Context: ctx}

	vault := bind.NewBoundContract(vaultAddr, chain.SponsorVaultABI(), eth, eth, eth)
	roomContract := bind.NewBoundContract(room, chain.VotingRoomABI(), eth, eth, eth)

	var balance, bps, ceiling []interface{}
	if err := vault.Call(opts, &balance, "roomBalance", room); err != nil {
		fmt.Fprintln(os.Stderr, "roomBalance:", err)
		os.Exit(1)
	}
	if err := vault.Call(opts, &bps, "overheadBps"); err != nil {
		fmt.Fprintln(os.Stderr, "overheadBps:", err)
		os.Exit(1)
	}
	if err := roomContract.Call(opts, &ceiling, "maxCostPerVoteWei"); err != nil {
		fmt.Fprintln(os.Stderr, "maxCostPerVoteWei:", err)
		os.Exit(1)
	}

	fmt.Printf("room:        %s\n", room.Hex())
	fmt.Printf("balance:     %s wei\n", balance[0])
	fmt.Printf("ceiling:     %s wei\n", ceiling[0])
	fmt.Printf("overhead:    %s bps\n", bps[0])
}
