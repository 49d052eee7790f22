package port

import "context"

// SubscriptionID identifies one active topic registration on a StreamConn.
type SubscriptionID int64

// StreamConn is one logical duplex streaming session. Implementations own
// reconnects; a transport drop is not visible here unless retries are
// exhausted, in which case the error arrives on Fatal.
type StreamConn interface {
	// Start is idempotent: starting a running connection returns a
	// recoverable error and leaves the session untouched.
	Start(ctx context.Context) error

	// Subscribe registers a handler for a topic, before or after Start.
	// Active subscriptions survive reconnects.
	Subscribe(topic string, dec FrameDecoder, h FrameHandler) (SubscriptionID, error)

	// Unsubscribe is best-effort: a no-op when the transport is gone.
	Unsubscribe(id SubscriptionID)

	// Stop blocks until the receive loop has fully exited.
	Stop() error

	Fatal() <-chan error
}
