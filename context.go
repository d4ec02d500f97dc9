package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceHintContextKey struct{}

// WithClientIP attaches the caller's address to ctx. It is stored on new
// sessions and included in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent to ctx for device classification.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceHint attaches an explicit device class hint (e.g. from the
// X-Device-Type header). A known class overrides user-agent detection.
func WithDeviceHint(ctx context.Context, hint string) context.Context {
	return context.WithValue(ctx, deviceHintContextKey{}, hint)
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func clientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientIPContextKey{})
}

func metadataFromContext(ctx context.Context) session.Metadata {
	return session.Metadata{
		UserAgent:     stringFromContext(ctx, userAgentContextKey{}),
		DeviceHint:    stringFromContext(ctx, deviceHintContextKey{}),
		SourceAddress: clientIPFromContext(ctx),
	}
}
