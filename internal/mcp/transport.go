package mcp

import "context"

// Transport delivers a JSON-RPC request and returns the decoded
// response. Implementations report delivery problems as
// *TransportError.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)

	// Close releases transport resources.
	Close() error
}

type idempotencyKey struct{}

// WithIdempotencyKey returns a context whose tool calls carry the given
// Idempotency-Key header. An empty key leaves ctx unchanged.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKey returns the key attached by WithIdempotencyKey, if any.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}
