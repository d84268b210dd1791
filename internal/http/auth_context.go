package httpserver

import (
	"context"

	"agentgate/internal/auth"
)

func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	value, ok := ctx.Value(identityKey).(auth.Identity)
	return value, ok
}
