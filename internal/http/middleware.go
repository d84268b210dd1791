package httpserver

import (
	"context"
	"net/http"
	"strings"

	"agentgate/internal/auth"
)

type Middleware func(HandlerFunc) HandlerFunc

type authContextKey string

const identityKey authContextKey = "identity"

func withMiddleware(handler HandlerFunc, middlewares ...Middleware) HandlerFunc {
	if len(middlewares) == 0 {
		return handler
	}

	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// SessionAuthMiddleware verifies the session cookie and attaches the
// identity it carries to the request context. Requests without a valid
// session get a 401 and never reach the handler.
func SessionAuthMiddleware(codec *auth.Codec, cookieName string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			identity, err := sessionIdentity(codec, cookieName, req)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized",
				})
				return
			}

			ctx := context.WithValue(req.Context(), identityKey, identity)
			next(w, req.WithContext(ctx))
		}
	}
}

func sessionIdentity(codec *auth.Codec, cookieName string, req *http.Request) (auth.Identity, error) {
	cookie, err := req.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return codec.VerifySession(cookie.Value)
}

// apiKeyFromRequest pulls the caller's key from x-api-key or a bearer
// Authorization header.
func apiKeyFromRequest(req *http.Request) string {
	if key := req.Header.Get("x-api-key"); key != "" {
		return key
	}

	authorization := req.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):])
	}
	return ""
}

// requireAPIKey checks the configured key against the request. An empty
// configured key leaves the endpoint public.
func requireAPIKey(configured string, req *http.Request) bool {
	if configured == "" {
		return true
	}
	return auth.ConstantTimeEquals(apiKeyFromRequest(req), configured)
}
