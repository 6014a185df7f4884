// Package forward models the signed meta-transaction request a voter produces
// off-chain and the relay executes through the trusted forwarder contract.
package forward

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Request mirrors the forwarder's ForwardRequest struct. Field names match the
// ABI tuple components so the bound contract can pack it directly.
type Request struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Gas   *big.Int
	Nonce *big.Int
	Data  []byte
}

// rawRequest is the wire shape. The signing front-end serializes uint256
// fields as decimal strings (JSON numbers lose precision past 2^53).
type rawRequest struct {
	From  *string `json:"from"`
	To    *string `json:"to"`
	Value *string `json:"value"`
	Gas   *string `json:"gas"`
	Nonce *string `json:"nonce"`
	Data  *string `json:"data"`
}

func (r *Request) UnmarshalJSON(b []byte) error {
	var raw rawRequest
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for name, p := range map[string]*string{
		"from": raw.From, "to": raw.To, "value": raw.Value,
		"gas": raw.Gas, "nonce": raw.Nonce, "data": raw.Data,
	} {
		if p == nil {
			return fmt.Errorf("missing field %s", name)
		}
	}

	if !common.IsHexAddress(*raw.From) {
		return fmt.Errorf("invalid from address %q", *raw.From)
	}
	if !common.IsHexAddress(*raw.To) {
		return fmt.Errorf("invalid to address %q", *raw.To)
	}
	r.From = common.HexToAddress(*raw.From)
	r.To = common.HexToAddress(*raw.To)

	var err error
	if r.Value, err = parseUint256("value", *raw.Value); err != nil {
		return err
	}
	if r.Gas, err = parseUint256("gas", *raw.Gas); err != nil {
		return err
	}
	if r.Nonce, err = parseUint256("nonce", *raw.Nonce); err != nil {
		return err
	}

	data, err := hexutil.Decode(*raw.Data)
	if err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	r.Data = data
	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	from, to, data := r.From.Hex(), r.To.Hex(), hexutil.Encode(r.Data)
	value, gas, nonce := r.Value.String(), r.Gas.String(), r.Nonce.String()
	return json.Marshal(rawRequest{
		From: &from, To: &to, Value: &value, Gas: &gas, Nonce: &nonce, Data: &data,
	})
}

// parseUint256 accepts decimal ("123") or hex ("0x7b") string encodings.
func parseUint256(name, s string) (*big.Int, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%s must be non-negative", name)
	}
	return n, nil
}

// Validate performs the structural checks that do not touch external state.
func (r *Request) Validate() error {
	if r.Value == nil || r.Gas == nil || r.Nonce == nil {
		return fmt.Errorf("request not fully decoded")
	}
	if r.Value.Sign() < 0 {
		return fmt.Errorf("value must be non-negative")
	}
	if r.Gas.Sign() <= 0 {
		return fmt.Errorf("gas must be positive")
	}
	if r.Nonce.Sign() < 0 {
		return fmt.Errorf("nonce must be non-negative")
	}
	if len(r.Data) < 4 {
		return fmt.Errorf("data too short for a function call (%d bytes)", len(r.Data))
	}
	if (r.To == common.Address{}) {
		return fmt.Errorf("to must not be the zero address")
	}
	return nil
}

// Selector returns the leading 4 calldata bytes as a lowercase 0x-prefixed
// string, or "" when the payload is too short.
func (r *Request) Selector() string {
	if len(r.Data) < 4 {
		return ""
	}
	return strings.ToLower(hexutil.Encode(r.Data[:4]))
}
