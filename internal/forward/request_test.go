package forward

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// ── JSON decoding ─────────────────────────────────────────────────────────────

const validJSON = `{
	"from":  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	"to":    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	"value": "0",
	"gas":   "500000",
	"nonce": "3",
	"data":  "0x0121b93f0000000000000000000000000000000000000000000000000000000000000001"
}`

func TestUnmarshal_DecimalStringFields(t *testing.T) {
	var r Request
	if err := json.Unmarshal([]byte(validJSON), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Gas.Int64() != 500000 {
		t.Errorf("gas: got %s want 500000", r.Gas)
	}
	if r.Nonce.Int64() != 3 {
		t.Errorf("nonce: got %s want 3", r.Nonce)
	}
	if r.Value.Sign() != 0 {
		t.Errorf("value: got %s want 0", r.Value)
	}
	if len(r.Data) != 36 {
		t.Errorf("data length: got %d want 36", len(r.Data))
	}
}

func TestUnmarshal_HexNumericFields(t *testing.T) {
	payload := strings.Replace(validJSON, `"gas":   "500000"`, `"gas": "0x7a120"`, 1)
	var r Request
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Gas.Int64() != 500000 {
		t.Errorf("hex gas: got %s want 500000", r.Gas)
	}
}

func TestUnmarshal_MissingField(t *testing.T) {
	for _, field := range []string{"from", "to", "value", "gas", "nonce", "data"} {
		var m map[string]any
		if err := json.Unmarshal([]byte(validJSON), &m); err != nil {
			t.Fatal(err)
		}
		delete(m, field)
		raw, _ := json.Marshal(m)

		var r Request
		err := json.Unmarshal(raw, &r)
		if err == nil {
			t.Errorf("missing %s: expected error", field)
			continue
		}
		if !strings.Contains(err.Error(), field) {
			t.Errorf("missing %s: error %q does not name the field", field, err)
		}
	}
}

func TestUnmarshal_RejectsBadAddress(t *testing.T) {
	payload := strings.Replace(validJSON, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "not-an-address", 1)
	var r Request
	if err := json.Unmarshal([]byte(payload), &r); err == nil {
		t.Error("expected error for invalid from address")
	}
}

func TestUnmarshal_RejectsNegativeNonce(t *testing.T) {
	payload := strings.Replace(validJSON, `"nonce": "3"`, `"nonce": "-1"`, 1)
	var r Request
	if err := json.Unmarshal([]byte(payload), &r); err == nil {
		t.Error("expected error for negative nonce")
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	var r Request
	if err := json.Unmarshal([]byte(validJSON), &r); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Request
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if back.From != r.From || back.To != r.To || back.Gas.Cmp(r.Gas) != 0 {
		t.Error("round trip changed the request")
	}
}

// ── Validate ──────────────────────────────────────────────────────────────────

func decodedRequest(t *testing.T) *Request {
	t.Helper()
	var r Request
	if err := json.Unmarshal([]byte(validJSON), &r); err != nil {
		t.Fatal(err)
	}
	return &r
}

func TestValidate_OK(t *testing.T) {
	if err := decodedRequest(t).Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidate_ZeroGas(t *testing.T) {
	r := decodedRequest(t)
	r.Gas = big.NewInt(0)
	if err := r.Validate(); err == nil {
		t.Error("expected error for zero gas")
	}
}

func TestValidate_ShortData(t *testing.T) {
	r := decodedRequest(t)
	r.Data = []byte{0x01, 0x21}
	if err := r.Validate(); err == nil {
		t.Error("expected error for data shorter than a selector")
	}
}

func TestValidate_ZeroTarget(t *testing.T) {
	r := decodedRequest(t)
	r.To = common.Address{}
	if err := r.Validate(); err == nil {
		t.Error("expected error for zero target address")
	}
}

// ── Selector ──────────────────────────────────────────────────────────────────

func TestSelector(t *testing.T) {
	r := decodedRequest(t)
	if got := r.Selector(); got != "0x0121b93f" {
		t.Errorf("selector: got %s want 0x0121b93f", got)
	}
	r.Data = nil
	if got := r.Selector(); got != "" {
		t.Errorf("selector of empty data: got %q want empty", got)
	}
}
