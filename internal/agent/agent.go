// Package agent talks to the upstream conversational agent. The agent is
// an external collaborator: one Query call yields a finite stream of
// messages terminated by the agent, and each turn's init message carries
// the session id needed to resume the conversation on the next turn.
package agent

import "context"

// Message mirrors the agent's wire shape: a type/subtype envelope, the
// session id on init messages, and content blocks on assistant messages.
type Message struct {
	Type      string      `json:"type"`
	Subtype   string      `json:"subtype,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Message   MessageBody `json:"message,omitempty"`
}

type MessageBody struct {
	Content []ContentBlock `json:"content,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

const (
	TypeSystem    = "system"
	TypeAssistant = "assistant"
	SubtypeInit   = "init"
	BlockText     = "text"
)

// IsInit reports whether the message starts a turn and carries a fresh
// resumption identifier.
func (m Message) IsInit() bool {
	return m.Type == TypeSystem && m.Subtype == SubtypeInit && m.SessionID != ""
}

// TextBlocks returns the text content of an assistant message, in order.
func (m Message) TextBlocks() []string {
	if m.Type != TypeAssistant {
		return nil
	}
	var blocks []string
	for _, block := range m.Message.Content {
		if block.Type == BlockText {
			blocks = append(blocks, block.Text)
		}
	}
	return blocks
}

// QueryOptions is the full set of options the gateway ever passes upstream.
// Caller-supplied keys are never forwarded; anything beyond this struct
// does not reach the agent.
type QueryOptions struct {
	Model  string
	Resume string
}

// Runner executes one agent turn.
type Runner interface {
	Query(ctx context.Context, prompt string, opts QueryOptions) (*Stream, error)
}

// Stream delivers the messages of one turn. The channel closes when the
// turn ends; Err reports how it ended and must only be called after the
// channel is drained.
type Stream struct {
	messages chan Message
	err      error
}

func newStream() *Stream {
	return &Stream{messages: make(chan Message, 16)}
}

func (s *Stream) Messages() <-chan Message {
	return s.messages
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) emit(ctx context.Context, msg Message) bool {
	select {
	case s.messages <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) finish(err error) {
	s.err = err
	close(s.messages)
}

// ScriptedStream returns an already-terminated stream that replays the
// given messages, for fake runners in tests.
func ScriptedStream(messages []Message, err error) *Stream {
	s := &Stream{messages: make(chan Message, len(messages))}
	for _, msg := range messages {
		s.messages <- msg
	}
	s.finish(err)
	return s
}
