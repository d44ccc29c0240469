// Package provider abstracts the outbound messaging gateway. The dispatch
// engine only needs a connected signal and a send primitive.
package provider

import "context"

// SendOutcome is the per-message result of a gateway call. It is transient;
// its fields end up on the recipient task.
type SendOutcome struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

type Sender interface {
	// Send transmits text to a canonical phone. A non-nil error means the
	// call itself failed (network, timeout); a provider-side rejection comes
	// back as Success=false with Error filled in. Callers treat both as a
	// failed task.
	Send(ctx context.Context, phone, text string) (SendOutcome, error)

	// IsConnected reports whether the gateway session is paired and usable.
	// Consulted before a campaign may start sending.
	IsConnected(ctx context.Context) bool
}
