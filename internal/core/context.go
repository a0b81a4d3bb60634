package core

import "context"

type contextKey string

const (
	ctxKeyIdentity  contextKey = "identity"
	ctxKeyIPAddress contextKey = "ip_address"
	ctxKeyUserAgent contextKey = "user_agent"
)

// ContextWithIdentity attaches the caller's organization and user.
func ContextWithIdentity(ctx context.Context, who Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, who)
}

// IdentityFromContext returns the identity set by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	who, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return who, ok
}

// ContextWithIPAddress adds the client IP for request logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the client User-Agent for request logging.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts the client IP.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts the client User-Agent.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
