package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gematik/zero-lab/go/verifier/nonce"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalidNonce
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidNonce:
		return "invalid_nonce"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	MessageAccepted     = "presentation accepted"
	MessageInvalidNonce = "nonce expired or unknown"
)

type Decision struct {
	Outcome Outcome
	Message string
}

// Gate admits a presentation only against an outstanding nonce. It holds no
// state; the nonce service decides.
type Gate struct {
	nonces nonce.Service
}

func NewGate(nonces nonce.Service) *Gate {
	return &Gate{nonces: nonces}
}

// VerifyPresentation redeems the nonce and decides. A returned error is an
// infrastructure failure (wrapping nonce.ErrStoreUnavailable), never a
// rejection.
func (g *Gate) VerifyPresentation(ctx context.Context, nonceStr string, p Presentation) (*Decision, error) {
	err := g.nonces.Redeem(ctx, nonceStr)
	if errors.Is(err, nonce.ErrInvalidNonce) {
		slog.Debug("presentation rejected", "nonce", truncate(nonceStr), "format", p.Format())
		return &Decision{Outcome: OutcomeInvalidNonce, Message: MessageInvalidNonce}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redeem nonce: %w", err)
	}

	slog.Info("presentation accepted", "holder", p.HolderID(), "format", p.Format())
	return &Decision{Outcome: OutcomeSuccess, Message: MessageAccepted}, nil
}

func truncate(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
