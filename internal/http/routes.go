package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"agentgate/internal/allowlist"
	"agentgate/internal/auth"
	"agentgate/internal/dispatch"
	"agentgate/internal/github"
	"agentgate/internal/mailer"
)

const stateCookieName = "oauth_state"

type Dependencies struct {
	Codec      *auth.Codec
	Policy     *allowlist.Policy
	Dispatcher *dispatch.Dispatcher

	// Github is nil-safe: an unconfigured client answers 503.
	Github *github.Client
	// Mail is nil when no relay is configured; /auth/start answers 503.
	Mail mailer.Sender

	APIKey        string
	SessionCookie string
	SessionTTL    time.Duration
	LoginTTL      time.Duration
	PublicURL     string
	CorsOrigins   []string

	// WSHandler serves the duplex channel at GET /ws.
	WSHandler http.Handler
}

func RegisterRoutes(router *Router, deps Dependencies) {
	cors := CORSMiddleware(CORSConfig{Origins: deps.CorsOrigins})
	sessionAuth := SessionAuthMiddleware(deps.Codec, deps.SessionCookie)

	router.Handle(http.MethodGet, "/health", withMiddleware(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}, cors))

	router.Handle(http.MethodPost, "/query", withMiddleware(func(w http.ResponseWriter, req *http.Request) {
		handleQuery(w, req, deps)
	}, cors))

	router.Handle(http.MethodPost, "/auth/start", withMiddleware(func(w http.ResponseWriter, req *http.Request) {
		handleAuthStart(w, req, deps)
	}, cors))

	router.Handle(http.MethodGet, "/auth/verify", func(w http.ResponseWriter, req *http.Request) {
		handleAuthVerify(w, req, deps)
	})

	router.Handle(http.MethodGet, "/auth/github", func(w http.ResponseWriter, req *http.Request) {
		handleGithub(w, req, deps)
	})

	pingHandler := withMiddleware(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}, cors, sessionAuth)
	router.Handle(http.MethodGet, "/auth/verify-ping", pingHandler)
	router.Handle(http.MethodHead, "/auth/verify-ping", pingHandler)

	router.Handle(http.MethodGet, "/auth/user", withMiddleware(func(w http.ResponseWriter, req *http.Request) {
		identity, ok := IdentityFromContext(req.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, identity)
	}, cors, sessionAuth))

	if deps.WSHandler != nil {
		router.Handle(http.MethodGet, "/ws", func(w http.ResponseWriter, req *http.Request) {
			deps.WSHandler.ServeHTTP(w, req)
		})
	}
}

// handleQuery validates the prompt before looking at the caller's key, so
// a malformed request is reported as malformed no matter who sent it.
func handleQuery(w http.ResponseWriter, req *http.Request, deps Dependencies) {
	body, err := decodeJSON(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
		return
	}

	rawPrompt, present := body["prompt"]
	if !present || rawPrompt == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
		return
	}
	prompt, ok := rawPrompt.(string)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Prompt must be a string"})
		return
	}
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
		return
	}
	if len(prompt) > dispatch.MaxPromptLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Prompt too long. Maximum %d characters", dispatch.MaxPromptLength),
		})
		return
	}

	if !requireAPIKey(deps.APIKey, req) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	model := ""
	if options, ok := body["options"].(map[string]any); ok {
		if value, ok := options["model"].(string); ok {
			model = value
		}
	}

	response, err := deps.Dispatcher.Collect(req.Context(), prompt, model)
	if err != nil {
		var upstream *dispatch.UpstreamError
		switch {
		case errors.Is(err, dispatch.ErrUpstreamNotConfigured):
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "ANTHROPIC_AUTH_TOKEN or CLAUDE_CODE_OAUTH_TOKEN not configured",
			})
		case errors.Is(err, dispatch.ErrModelNotAllowed):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "Invalid model. Allowed models: " + strings.Join(deps.Dispatcher.AllowedModels(), ", "),
			})
		case errors.As(err, &upstream):
			log.Printf("[Query] failed: %v", upstream.Err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process query",
				"details": upstream.Err.Error(),
			})
		default:
			log.Printf("[Query] failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to process query",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": response,
	})
}

// handleAuthStart answers 204 whether or not the address is allowed, so
// the response code never reveals allowlist membership.
func handleAuthStart(w http.ResponseWriter, req *http.Request, deps Dependencies) {
	body, err := decodeJSON(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email is required"})
		return
	}
	email, _ := body["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email is required"})
		return
	}

	if deps.Mail == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "Email sign-in is not configured",
		})
		return
	}

	if deps.Policy.AllowsEmail(email) {
		if err := deps.sendLoginLink(req, email); err != nil {
			log.Printf("[Auth] magic link to %s failed: %v", email, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (deps Dependencies) sendLoginLink(req *http.Request, email string) error {
	token, err := deps.Codec.IssueLogin(email, deps.LoginTTL)
	if err != nil {
		return err
	}
	link := deps.PublicURL + "/auth/verify?t=" + token
	return deps.Mail.SendLoginLink(req.Context(), email, link)
}

func handleAuthVerify(w http.ResponseWriter, req *http.Request, deps Dependencies) {
	raw := req.URL.Query().Get("t")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing token"})
		return
	}

	email, err := deps.Codec.VerifyLogin(raw)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired link"})
		return
	}

	if err := deps.issueSessionCookie(w, auth.Identity{Email: email}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create session"})
		return
	}
	http.Redirect(w, req, "/", http.StatusFound)
}

// handleGithub serves both halves of the OAuth flow on one path: without
// a code it redirects to GitHub, with a code it completes the exchange.
func handleGithub(w http.ResponseWriter, req *http.Request, deps Dependencies) {
	if !deps.Github.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "GitHub sign-in is not configured",
		})
		return
	}

	code := req.URL.Query().Get("code")
	if code == "" {
		state, err := github.NewState()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to start GitHub sign-in"})
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     "/",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, req, deps.Github.AuthorizeURL(deps.PublicURL+"/auth/github", state), http.StatusFound)
		return
	}

	stateCookie, err := req.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != req.URL.Query().Get("state") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "GitHub authentication failed"})
		return
	}
	clearCookie(w, stateCookieName)

	profile, err := deps.Github.ExchangeCode(req.Context(), code)
	if err != nil {
		log.Printf("[Auth] github exchange failed: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "GitHub authentication failed"})
		return
	}

	identity := auth.Identity{
		Username:  profile.Login,
		ID:        profile.ID,
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		Company:   profile.Company,
	}
	if !deps.Policy.AllowsGithub(identity) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "GitHub user not authorized"})
		return
	}

	if err := deps.issueSessionCookie(w, identity); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create session"})
		return
	}
	http.Redirect(w, req, "/", http.StatusFound)
}

func (deps Dependencies) issueSessionCookie(w http.ResponseWriter, identity auth.Identity) error {
	token, err := deps.Codec.IssueSession(identity, deps.SessionTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     deps.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(deps.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(req *http.Request) (map[string]any, error) {
	decoder := json.NewDecoder(req.Body)
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, errors.New("invalid JSON payload")
	}
	if payload == nil {
		return nil, errors.New("empty payload")
	}
	return payload, nil
}
