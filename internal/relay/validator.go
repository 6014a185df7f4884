package relay

import (
	"math/big"

	"github.com/securevote/relayer/internal/forward"
)

// Validator performs the syntactic and policy checks that need no external
// calls: request shape, network identity, selector allowlist.
type Validator struct {
	chainID   *big.Int
	domain    forward.Domain
	selectors map[string]struct{}
}

// NewValidator builds a validator for one deployment. domain is the
// forwarder's EIP-712 domain read at startup; selectors is the configured
// allowlist of permitted 4-byte operations.
func NewValidator(chainID *big.Int, domain forward.Domain, selectors []string) *Validator {
	set := make(map[string]struct{}, len(selectors))
	for _, s := range selectors {
		set[s] = struct{}{}
	}
	return &Validator{chainID: chainID, domain: domain, selectors: set}
}

// Domain returns the signing domain requests are validated against.
func (v *Validator) Domain() forward.Domain { return v.domain }

// Validate checks the request in order: shape, network, selector. First
// failure wins; no side effects.
func (v *Validator) Validate(req *forward.Request, sig []byte) *Error {
	if req == nil {
		return rejectf(KindRequestMalformed, "missing request")
	}
	if err := req.Validate(); err != nil {
		return rejectf(KindRequestMalformed, "%v", err)
	}
	if len(sig) != 65 {
		return rejectf(KindRequestMalformed, "signature must be 65 bytes, got %d", len(sig))
	}

	// The forwarder's advertised domain carries the network it verifies
	// signatures for; a mismatch with the configured chain means this
	// deployment would relay votes onto the wrong network.
	if v.domain.ChainID == nil || v.domain.ChainID.Cmp(v.chainID) != 0 {
		return rejectf(KindWrongNetwork, "forwarder domain chain %v, relay serves %s", v.domain.ChainID, v.chainID)
	}

	// The relay pays for execution out of its own balance. Anything beyond
	// the vote operation would let an attacker drain it on arbitrary calls.
	sel := req.Selector()
	if _, ok := v.selectors[sel]; !ok {
		return rejectf(KindSelectorNotAllowed, "selector %s is not a permitted operation", sel)
	}
	return nil
}
