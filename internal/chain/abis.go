package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Hand-maintained ABI subsets for the three contracts the relay talks to.
// Only the functions, events and errors the service actually touches are
// listed; the error entries feed the revert decoder.

const forwarderABIJSON = `[
 {"type":"function","name":"getNonce","stateMutability":"view",
  "inputs":[{"name":"from","type":"address"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"verify","stateMutability":"view",
  "inputs":[
    {"name":"req","type":"tuple","components":[
      {"name":"from","type":"address"},
      {"name":"to","type":"address"},
      {"name":"value","type":"uint256"},
      {"name":"gas","type":"uint256"},
      {"name":"nonce","type":"uint256"},
      {"name":"data","type":"bytes"}]},
    {"name":"signature","type":"bytes"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"execute","stateMutability":"payable",
  "inputs":[
    {"name":"req","type":"tuple","components":[
      {"name":"from","type":"address"},
      {"name":"to","type":"address"},
      {"name":"value","type":"uint256"},
      {"name":"gas","type":"uint256"},
      {"name":"nonce","type":"uint256"},
      {"name":"data","type":"bytes"}]},
    {"name":"signature","type":"bytes"}],
  "outputs":[{"name":"","type":"bool"},{"name":"","type":"bytes"}]},
 {"type":"function","name":"eip712Domain","stateMutability":"view",
  "inputs":[],
  "outputs":[
    {"name":"fields","type":"bytes1"},
    {"name":"name","type":"string"},
    {"name":"version","type":"string"},
    {"name":"chainId","type":"uint256"},
    {"name":"verifyingContract","type":"address"},
    {"name":"salt","type":"bytes32"},
    {"name":"extensions","type":"uint256[]"}]}
]`

const votingRoomABIJSON = `[
 {"type":"function","name":"maxCostPerVoteWei","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"event","name":"VoteCast","anonymous":false,
  "inputs":[
    {"name":"voter","type":"address","indexed":true},
    {"name":"round","type":"uint256","indexed":true},
    {"name":"candidateId","type":"uint256","indexed":false},
    {"name":"voteId","type":"bytes32","indexed":false}]},
 {"type":"error","name":"AlreadyInitialized","inputs":[]},
 {"type":"error","name":"InvalidState",
  "inputs":[{"name":"current","type":"uint8"}]},
 {"type":"error","name":"VoterNotEligible",
  "inputs":[{"name":"voter","type":"address"}]},
 {"type":"error","name":"NoCredit",
  "inputs":[{"name":"voter","type":"address"}]},
 {"type":"error","name":"UnknownCandidate",
  "inputs":[{"name":"candidateId","type":"uint256"}]}
]`

const sponsorVaultABIJSON = `[
 {"type":"function","name":"roomBalance","stateMutability":"view",
  "inputs":[{"name":"room","type":"address"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"overheadBps","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"settleAndWithdraw","stateMutability":"nonpayable",
  "inputs":[
    {"name":"room","type":"address"},
    {"name":"voteId","type":"bytes32"},
    {"name":"amount","type":"uint256"}],
  "outputs":[]},
 {"type":"error","name":"InsufficientDeposit",
  "inputs":[
    {"name":"room","type":"address"},
    {"name":"balance","type":"uint256"},
    {"name":"required","type":"uint256"}]},
 {"type":"error","name":"AlreadySettled",
  "inputs":[{"name":"voteId","type":"bytes32"}]},
 {"type":"error","name":"NotRelayer",
  "inputs":[{"name":"caller","type":"address"}]},
 {"type":"error","name":"InsufficientRegistrationFee","inputs":[]}
]`

var (
	forwarderABI    = mustParseABI(forwarderABIJSON)
	votingRoomABI   = mustParseABI(votingRoomABIJSON)
	sponsorVaultABI = mustParseABI(sponsorVaultABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ForwarderABI exposes the forwarder ABI for calldata packing in tests.
func ForwarderABI() abi.ABI { return forwarderABI }

// VotingRoomABI exposes the room ABI (revert decoding, event matching).
func VotingRoomABI() abi.ABI { return votingRoomABI }

// SponsorVaultABI exposes the vault ABI (revert decoding).
func SponsorVaultABI() abi.ABI { return sponsorVaultABI }
