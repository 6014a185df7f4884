// Package revert classifies opaque EVM failure payloads into a closed set of
// decoded shapes. The taxonomy is purely diagnostic: callers branch on their
// own error kinds, never on what this package decodes.
package revert

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Kind tags the decoded variant.
type Kind string

const (
	KindError        Kind = "Error"        // Error(string)
	KindPanic        Kind = "Panic"        // Panic(uint256)
	KindVotingRoom   Kind = "VotingRoom"   // room custom error, by name
	KindSponsorVault Kind = "SponsorVault" // vault custom error, by name
	KindUnknown      Kind = "Unknown"      // unrecognized, verbatim
)

// Decoded is the structured form of a revert payload.
type Decoded struct {
	Kind   Kind     `json:"kind"`
	Reason string   `json:"reason,omitempty"` // Error(string) message
	Code   string   `json:"code,omitempty"`   // Panic code, decimal
	Name   string   `json:"name,omitempty"`   // custom error name
	Args   []string `json:"args,omitempty"`   // custom error args, rendered
	Hex    string   `json:"hex,omitempty"`    // raw payload for Unknown
}

func (d *Decoded) String() string {
	switch d.Kind {
	case KindError:
		return fmt.Sprintf("Error(%q)", d.Reason)
	case KindPanic:
		return fmt.Sprintf("Panic(%s)", d.Code)
	case KindVotingRoom, KindSponsorVault:
		return fmt.Sprintf("%s.%s(%s)", d.Kind, d.Name, strings.Join(d.Args, ", "))
	default:
		return "unknown revert " + d.Hex
	}
}

var (
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71} // Panic(uint256)
)

// Decoder resolves custom errors against the two contract vocabularies.
type Decoder struct {
	roomErrors  map[string]abi.Error
	vaultErrors map[string]abi.Error
}

// NewDecoder builds a decoder over the room and vault error ABIs.
func NewDecoder(roomABI, vaultABI abi.ABI) *Decoder {
	return &Decoder{roomErrors: roomABI.Errors, vaultErrors: vaultABI.Errors}
}

// Decode classifies a raw revert payload. nil input yields nil.
func (d *Decoder) Decode(data []byte) *Decoded {
	if len(data) == 0 {
		return nil
	}
	if len(data) >= 4 {
		sel := data[:4]

		if bytes.Equal(sel, errorSelector) {
			if reason, err := abi.UnpackRevert(data); err == nil {
				return &Decoded{Kind: KindError, Reason: reason}
			}
		}
		if bytes.Equal(sel, panicSelector) && len(data) >= 36 {
			code := new(big.Int).SetBytes(data[4:36])
			return &Decoded{Kind: KindPanic, Code: code.String()}
		}
		if dec := matchCustom(d.roomErrors, KindVotingRoom, data); dec != nil {
			return dec
		}
		if dec := matchCustom(d.vaultErrors, KindSponsorVault, data); dec != nil {
			return dec
		}
	}
	return &Decoded{Kind: KindUnknown, Hex: hexutil.Encode(data)}
}

// FromError extracts the revert payload carried by a go-ethereum JSON-RPC
// error (or anything in its wrap chain) and decodes it. Returns nil when the
// error carries no payload.
func (d *Decoder) FromError(err error) *Decoded {
	for e := err; e != nil; e = errors.Unwrap(e) {
		de, ok := e.(rpc.DataError)
		if !ok {
			continue
		}
		raw, ok := de.ErrorData().(string)
		if !ok {
			continue
		}
		data, decErr := hexutil.Decode(raw)
		if decErr != nil {
			continue
		}
		return d.Decode(data)
	}
	return nil
}

func matchCustom(vocab map[string]abi.Error, kind Kind, data []byte) *Decoded {
	for _, abiErr := range vocab {
		if !bytes.Equal(abiErr.ID.Bytes()[:4], data[:4]) {
			continue
		}
		vals, err := abiErr.Inputs.UnpackValues(data[4:])
		if err != nil {
			return &Decoded{Kind: kind, Name: abiErr.Name}
		}
		args := make([]string, len(vals))
		for i, v := range vals {
			args[i] = renderArg(v)
		}
		return &Decoded{Kind: kind, Name: abiErr.Name, Args: args}
	}
	return nil
}

func renderArg(v interface{}) string {
	switch x := v.(type) {
	case common.Address:
		return x.Hex()
	case [32]byte:
		return hexutil.Encode(x[:])
	case []byte:
		return hexutil.Encode(x)
	case *big.Int:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
