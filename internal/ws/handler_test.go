package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"agentgate/internal/agent"
	"agentgate/internal/auth"
	"agentgate/internal/dispatch"
)

// scriptedRunner replays one canned message slice per query and records
// the options each query was given.
type scriptedRunner struct {
	mu     sync.Mutex
	script [][]agent.Message
	calls  []agent.QueryOptions
}

func (r *scriptedRunner) Query(ctx context.Context, prompt string, opts agent.QueryOptions) (*agent.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, opts)
	var msgs []agent.Message
	if len(r.script) > 0 {
		msgs = r.script[0]
		r.script = r.script[1:]
	}
	return agent.ScriptedStream(msgs, nil), nil
}

func (r *scriptedRunner) recorded() []agent.QueryOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.QueryOptions(nil), r.calls...)
}

func turn(sessionID string, texts ...string) []agent.Message {
	msgs := []agent.Message{{
		Type:      agent.TypeSystem,
		Subtype:   agent.SubtypeInit,
		SessionID: sessionID,
	}}
	for _, text := range texts {
		msgs = append(msgs, agent.Message{
			Type: agent.TypeAssistant,
			Message: agent.MessageBody{
				Content: []agent.ContentBlock{{Type: agent.BlockText, Text: text}},
			},
		})
	}
	return msgs
}

func newTestHandler(t *testing.T, runner agent.Runner) (*Handler, *auth.Codec, *Registry) {
	t.Helper()
	codec := auth.NewCodec([]byte("test-secret"))
	registry := NewRegistry()
	dispatcher := dispatch.New(runner, dispatch.Config{
		UpstreamConfigured: true,
		DefaultModel:       "claude-sonnet-4-0",
		AllowedModels:      []string{"claude-sonnet-4-0", "claude-opus-4-1"},
	})
	return NewHandler(codec, dispatcher, registry, "sid"), codec, registry
}

func dialWithCookie(t *testing.T, srv *httptest.Server, cookie string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", "sid="+cookie)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame outboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return frame
}

func TestHandlerClosesUnauthenticatedChannel(t *testing.T) {
	handler, _, registry := newTestHandler(t, &scriptedRunner{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dialWithCookie(t, srv, "")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the channel to close without sending a frame")
	}
	if registry.Len() != 0 {
		t.Fatalf("unauthenticated channel must not be registered, got %d", registry.Len())
	}
}

func TestHandlerRejectsForgedCookie(t *testing.T) {
	handler, _, _ := newTestHandler(t, &scriptedRunner{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	other := auth.NewCodec([]byte("other-secret"))
	token, err := other.IssueSession(auth.Identity{Username: "mallory"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	conn := dialWithCookie(t, srv, token)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the channel to close without sending a frame")
	}
}

func TestHandlerChainsResumptionAcrossPrompts(t *testing.T) {
	runner := &scriptedRunner{script: [][]agent.Message{
		turn("s1", "first"),
		turn("s2", "second"),
		turn("s3", "third"),
	}}
	handler, codec, _ := newTestHandler(t, runner)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	token, err := codec.IssueSession(auth.Identity{Username: "octocat"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	conn := dialWithCookie(t, srv, token)
	defer conn.Close()

	if frame := readFrame(t, conn); frame.Type != frameReady {
		t.Fatalf("expected ready frame, got %+v", frame)
	}

	for i, want := range []string{"first", "second", "third"} {
		if err := conn.WriteJSON(map[string]string{"prompt": "hello"}); err != nil {
			t.Fatalf("write prompt %d: %v", i, err)
		}
		text := readFrame(t, conn)
		if text.Type != frameText || text.Chunk != want {
			t.Fatalf("prompt %d: expected text %q, got %+v", i, want, text)
		}
		if done := readFrame(t, conn); done.Type != frameDone {
			t.Fatalf("prompt %d: expected done frame, got %+v", i, done)
		}
	}

	calls := runner.recorded()
	if len(calls) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(calls))
	}
	for i, wantResume := range []string{"", "s1", "s2"} {
		if calls[i].Resume != wantResume {
			t.Fatalf("query %d: expected resume %q, got %q", i, wantResume, calls[i].Resume)
		}
	}
}

func TestHandlerIgnoresMalformedAndEmptyFrames(t *testing.T) {
	runner := &scriptedRunner{script: [][]agent.Message{turn("s1", "ok")}}
	handler, codec, _ := newTestHandler(t, runner)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	token, err := codec.IssueSession(auth.Identity{Username: "octocat"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	conn := dialWithCookie(t, srv, token)
	defer conn.Close()

	if frame := readFrame(t, conn); frame.Type != frameReady {
		t.Fatalf("expected ready frame, got %+v", frame)
	}

	// Neither of these should produce a reply or tear down the channel.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"prompt": ""}); err != nil {
		t.Fatalf("write empty prompt: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"prompt": "real"}); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	if text := readFrame(t, conn); text.Type != frameText || text.Chunk != "ok" {
		t.Fatalf("expected text ok, got %+v", text)
	}
	if done := readFrame(t, conn); done.Type != frameDone {
		t.Fatalf("expected done frame, got %+v", done)
	}
	if got := runner.recorded(); len(got) != 1 {
		t.Fatalf("expected exactly 1 query, got %d", len(got))
	}
}

func TestHandlerReportsOverlongPromptAndStaysOpen(t *testing.T) {
	runner := &scriptedRunner{script: [][]agent.Message{turn("s1", "after")}}
	handler, codec, _ := newTestHandler(t, runner)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	token, err := codec.IssueSession(auth.Identity{Username: "octocat"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	conn := dialWithCookie(t, srv, token)
	defer conn.Close()

	if frame := readFrame(t, conn); frame.Type != frameReady {
		t.Fatalf("expected ready frame, got %+v", frame)
	}

	long := strings.Repeat("a", dispatch.MaxPromptLength+1)
	if err := conn.WriteJSON(map[string]string{"prompt": long}); err != nil {
		t.Fatalf("write long prompt: %v", err)
	}
	frame := readFrame(t, conn)
	if frame.Type != frameError {
		t.Fatalf("expected error frame, got %+v", frame)
	}
	if frame.Message != "Prompt too long. Maximum 100000 characters" {
		t.Fatalf("unexpected error message %q", frame.Message)
	}

	// The channel survives the rejected prompt.
	if err := conn.WriteJSON(map[string]string{"prompt": "real"}); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	if text := readFrame(t, conn); text.Type != frameText || text.Chunk != "after" {
		t.Fatalf("expected text after, got %+v", text)
	}
	if done := readFrame(t, conn); done.Type != frameDone {
		t.Fatalf("expected done frame, got %+v", done)
	}
}
