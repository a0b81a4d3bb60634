package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/importledger/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so service
// logs can attribute ledger writes.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// identity returns the caller set by the Identity middleware.
func identity(r *http.Request) core.Identity {
	who, _ := core.IdentityFromContext(r.Context())
	return who
}
