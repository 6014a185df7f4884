package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/securevote/relayer/internal/revert"
)

// Kind is the closed error taxonomy surfaced to callers. The split that
// matters operationally: kinds up to SimulationReverted mean nothing happened
// on-chain and the caller may simply re-sign and resubmit; the settlement
// kinds mean the vote itself succeeded and only billing is pending.
type Kind string

const (
	KindRequestMalformed                Kind = "RequestMalformed"
	KindWrongNetwork                    Kind = "WrongNetwork"
	KindSelectorNotAllowed              Kind = "SelectorNotAllowed"
	KindSignatureMismatch               Kind = "SignatureMismatch"
	KindInsufficientRoomBalance         Kind = "InsufficientRoomBalance"
	KindSimulationReverted              Kind = "SimulationReverted"
	KindSubmissionFailed                Kind = "SubmissionFailed"
	KindActionIdNotFound                Kind = "ActionIdNotFound"
	KindInsufficientBalanceAtSettlement Kind = "InsufficientBalanceAtSettlement"
	KindSettlementRejectedByLedger      Kind = "SettlementRejectedByLedger"
	KindTimeout                         Kind = "Timeout"
)

// Error is the structured rejection returned by every pipeline stage.
type Error struct {
	Kind    Kind            `json:"kind"`
	Message string          `json:"message"`
	Revert  *revert.Decoded `json:"revert,omitempty"`

	// Executed is true when the vote landed on-chain and only billing
	// failed. Such requests must never be resubmitted.
	Executed bool `json:"executed"`

	// SafeToRetry is true when no on-chain effect occurred and a freshly
	// signed request may be submitted.
	SafeToRetry bool `json:"safeToRetry"`
}

func (e *Error) Error() string {
	if e.Revert != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Revert)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus maps the taxonomy onto the API surface: 400 for anything caught
// before spending gas, 5xx once the relay started spending.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindRequestMalformed, KindWrongNetwork, KindSelectorNotAllowed,
		KindSignatureMismatch, KindInsufficientRoomBalance, KindSimulationReverted:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// rejectf builds a pre-execution rejection (no on-chain effect, retry-safe).
func rejectf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), SafeToRetry: true}
}

// billingf builds a post-execution billing failure: the vote stands, the
// charge does not. Never retry-safe.
func billingf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Executed: true}
}

// transient wraps an external read/submission transport failure. Deadline
// errors and plain connectivity errors land in the same bucket: the caller
// learns nothing happened on-chain and may retry.
func transient(stage string, err error) *Error {
	msg := fmt.Sprintf("%s: %v", stage, err)
	if errors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s: deadline exceeded", stage)
	}
	return &Error{Kind: KindTimeout, Message: msg, SafeToRetry: true}
}
