package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/importledger/internal/core"
)

// Identity headers set by the gateway in front of the service.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

type holderKey struct{}

func withIdentityHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// Identity reads the caller's organization and user from the gateway headers
// and stores them with core.ContextWithIdentity. Requests without an
// organization are rejected with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(HeaderOrganizationID))
		if orgID == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing organization", "AUTH_MISSING_ORG")
			return
		}

		who := core.Identity{
			OrganizationID: orgID,
			UserID:         strings.TrimSpace(r.Header.Get(HeaderUserID)),
		}
		if h, ok := r.Context().Value(holderKey{}).(*identityHolder); ok {
			h.who = who
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithIdentity(r.Context(), who)))
	})
}
