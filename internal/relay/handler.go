package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/securevote/relayer/internal/forward"
)

// RequestRelayer is satisfied by *Pipeline. Decoupled here so handler tests
// can use a mock.
type RequestRelayer interface {
	Relay(ctx context.Context, req *forward.Request, sig []byte) (*Result, *Error)
}

// HealthInfo is the static identity block served by GET /health.
type HealthInfo struct {
	ChainID   int64  `json:"chainId"`
	Relayer   string `json:"relayer"`
	Forwarder string `json:"forwarder"`
}

// Handler wires the relay routes onto a Gin engine.
type Handler struct {
	pipeline RequestRelayer
	health   HealthInfo
	log      *zap.Logger
}

func NewHandler(pipeline RequestRelayer, health HealthInfo, log *zap.Logger) *Handler {
	return &Handler{pipeline: pipeline, health: health, log: log}
}

// Register mounts all routes.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.handleHealth)
	r.POST("/relay", h.handleRelay)
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"chainId":   h.health.ChainID,
		"relayer":   h.health.Relayer,
		"forwarder": h.health.Forwarder,
	})
}

// relayBody is the POST /relay payload. The request field keeps the wire name
// "req" the signing front-end uses.
type relayBody struct {
	Req       *forward.Request `json:"req"`
	Signature string           `json:"signature"`
}

func (h *Handler) handleRelay(c *gin.Context) {
	var body relayBody
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		h.reject(c, rejectf(KindRequestMalformed, "invalid body: %v", err))
		return
	}
	if body.Req == nil || body.Signature == "" {
		h.reject(c, rejectf(KindRequestMalformed, "missing req or signature"))
		return
	}
	sig, err := hexutil.Decode(body.Signature)
	if err != nil {
		h.reject(c, rejectf(KindRequestMalformed, "invalid signature encoding: %v", err))
		return
	}

	h.log.Info("relay request",
		zap.String("from", body.Req.From.Hex()),
		zap.String("to", body.Req.To.Hex()),
		zap.String("selector", body.Req.Selector()),
	)

	result, relayErr := h.pipeline.Relay(c.Request.Context(), body.Req, sig)
	if relayErr != nil {
		h.reject(c, relayErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

// reject writes the decoded structured reason. Callers always learn which of
// "nothing happened, resubmit" and "vote landed, billing pending" they are in.
func (h *Handler) reject(c *gin.Context, e *Error) {
	h.log.Warn("relay rejected",
		zap.String("kind", string(e.Kind)),
		zap.String("message", e.Message),
		zap.Bool("executed", e.Executed),
	)
	c.JSON(e.HTTPStatus(), gin.H{"error": e})
}
