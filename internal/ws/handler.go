// Package ws serves the duplex channel: an authenticated websocket that
// carries prompts in and streamed agent output back, with the
// conversation's resumption identifier tracked server-side per channel.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"agentgate/internal/auth"
	"agentgate/internal/dispatch"
)

// Outbound frame types.
const (
	frameReady = "ready"
	frameText  = "text"
	frameDone  = "done"
	frameError = "error"
)

type inboundFrame struct {
	Prompt string `json:"prompt"`
}

type outboundFrame struct {
	Type    string `json:"type"`
	Chunk   string `json:"chunk,omitempty"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	codec      *auth.Codec
	dispatcher *dispatch.Dispatcher
	registry   *Registry
	cookieName string
	upgrader   websocket.Upgrader
}

func NewHandler(codec *auth.Codec, dispatcher *dispatch.Dispatcher, registry *Registry, cookieName string) *Handler {
	return &Handler{
		codec:      codec,
		dispatcher: dispatcher,
		registry:   registry,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades the connection and runs the channel to completion.
// An unauthenticated upgrade is accepted and then closed without sending
// any frame: the client never receives data, and the handshake status does
// not reveal whether a session existed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	safe := newSafeConn(conn)
	defer safe.close()

	if _, err := h.authenticate(req); err != nil {
		return
	}

	id := h.registry.Add()
	defer h.registry.Remove(id)

	if err := safe.writeJSON(outboundFrame{Type: frameReady}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// The single read loop serializes prompts: a new prompt cannot start
	// while the previous turn on this channel is still streaming.
	for {
		data, err := safe.readMessage()
		if err != nil {
			return
		}

		frame, ok := parseInbound(data)
		if !ok || frame.Prompt == "" {
			continue
		}

		h.runTurn(ctx, safe, id, frame.Prompt)
	}
}

func (h *Handler) authenticate(req *http.Request) (auth.Identity, error) {
	cookie, err := req.Cookie(h.cookieName)
	if err != nil || cookie.Value == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return h.codec.VerifySession(cookie.Value)
}

func (h *Handler) runTurn(ctx context.Context, safe *safeConn, id string, prompt string) {
	err := h.dispatcher.Run(ctx, dispatch.Turn{
		Prompt: prompt,
		Resume: h.registry.Resume(id),
		OnText: func(chunk string) error {
			return safe.writeJSON(outboundFrame{Type: frameText, Chunk: chunk})
		},
		OnResume: func(resume string) {
			h.registry.SetResume(id, resume)
		},
	})
	if err != nil {
		h.reportError(safe, err)
		return
	}

	_ = safe.writeJSON(outboundFrame{Type: frameDone})
}

// reportError maps a turn failure to an error frame. Validation failures
// carry their specific message; upstream failures are logged server-side
// and surfaced generically. The channel stays open for further prompts.
func (h *Handler) reportError(safe *safeConn, err error) {
	var upstream *dispatch.UpstreamError
	switch {
	case errors.Is(err, dispatch.ErrEmptyPrompt):
		_ = safe.writeJSON(outboundFrame{Type: frameError, Message: "Prompt is required"})
	case errors.Is(err, dispatch.ErrPromptTooLong):
		_ = safe.writeJSON(outboundFrame{Type: frameError, Message: fmt.Sprintf("Prompt too long. Maximum %d characters", dispatch.MaxPromptLength)})
	case errors.Is(err, dispatch.ErrUpstreamNotConfigured):
		_ = safe.writeJSON(outboundFrame{Type: frameError, Message: "ANTHROPIC_AUTH_TOKEN or CLAUDE_CODE_OAUTH_TOKEN not configured"})
	case errors.As(err, &upstream):
		log.Printf("[ws] query error: %v", upstream.Err)
		_ = safe.writeJSON(outboundFrame{Type: frameError, Message: "Failed to process query"})
	default:
		// Write failures land here; the read loop will observe the close.
		log.Printf("[ws] relay error: %v", err)
	}
}

func parseInbound(data []byte) (inboundFrame, bool) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return inboundFrame{}, false
	}
	return frame, true
}
