package port

import "context"

// Frame is one ticker message in canonical field names. Wire field names of a
// concrete exchange are translated into these at the connection boundary.
type Frame struct {
	Topic       string  // stream the frame arrived on, e.g. "btcusdt@ticker"
	Symbol      string  // "BTCUSDT"
	Open        float64
	Close       float64
	High        float64
	Low         float64
	Volume      float64
	QuoteVolume float64
	EventTime   int64 // unix ms
}

// FrameHandler processes one decoded frame. Invocations for the same symbol
// are serialized by the dispatcher; invocations across symbols are not.
type FrameHandler interface {
	Handle(ctx context.Context, f Frame) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, f Frame) error

func (fn FrameHandlerFunc) Handle(ctx context.Context, f Frame) error { return fn(ctx, f) }

// FrameDecoder translates one raw stream payload into a canonical Frame.
type FrameDecoder func(topic string, data []byte) (Frame, error)
