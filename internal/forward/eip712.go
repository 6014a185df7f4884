package forward

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain is the forwarder's EIP-712 signing domain. It is read from the
// contract via eip712Domain() (ERC-5267) at startup, never hardcoded: a
// mismatched name or version silently invalidates every signature.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

var requestTypeHash = crypto.Keccak256Hash([]byte(
	"ForwardRequest(address from,address to,uint256 value,uint256 gas,uint256 nonce,bytes data)",
))

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() [32]byte {
	domainTypeHash := crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	// ABI-encode: (bytes32, bytes32, bytes32, uint256, address), each slot 32 bytes
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], nameHash[:])
	copy(encoded[64:96], versionHash[:])
	d.ChainID.FillBytes(encoded[96:128])
	copy(encoded[140:160], d.VerifyingContract.Bytes()) // addr right-aligned in its slot

	return crypto.Keccak256Hash(encoded)
}

// Digest computes the final EIP-712 digest for a request under a domain.
func Digest(r *Request, d Domain) [32]byte {
	// structHash = keccak256(typeHash || abi.encode(fields)); dynamic bytes
	// contribute keccak256(data), not the raw bytes
	encoded := make([]byte, 7*32)
	copy(encoded[0:32], requestTypeHash[:])
	copy(encoded[44:64], r.From.Bytes())
	copy(encoded[76:96], r.To.Bytes())
	r.Value.FillBytes(encoded[96:128])
	r.Gas.FillBytes(encoded[128:160])
	r.Nonce.FillBytes(encoded[160:192])
	dataHash := crypto.Keccak256Hash(r.Data)
	copy(encoded[192:224], dataHash[:])

	structHash := crypto.Keccak256Hash(encoded)
	sep := d.Separator()

	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

// Sign produces the 65-byte signature a wallet would emit for the request.
// The relay itself never signs requests; this exists for tooling and tests.
func Sign(r *Request, d Domain, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := Digest(r, d)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	// V from 0/1 to 27/28 for Solidity ecrecover
	sig[64] += 27
	return sig, nil
}

// Recover extracts the signer address from a request signature.
func Recover(r *Request, d Domain, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("invalid signature length")
	}
	digest := Digest(r, d)
	cp := make([]byte, 65)
	copy(cp, sig)
	if cp[64] >= 27 {
		cp[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], cp)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
