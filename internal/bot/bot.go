// Package bot defines the seams between the credential core and the chat
// surface that drives it. The chat transport and the language loop are
// separate deployables; this package only fixes their contracts.
package bot

import (
	"context"

	"github.com/jwjoung/cloudtrail-bot/internal/tools"
)

// Message is one inbound chat message.
type Message struct {
	ChannelID string
	UserID    string
	ThreadTS  string
	Text      string
}

// Messenger is the chat transport. Implementations deliver replies back
// to the originating channel or thread.
type Messenger interface {
	// Reply posts text into the message's channel, threading when the
	// transport supports it.
	Reply(ctx context.Context, to Message, text string) error
}

// Memory keeps per-conversation context between turns.
type Memory interface {
	// History returns prior turns for the conversation key, newest last.
	History(ctx context.Context, key string) ([]string, error)
	// Append records one turn. Implementations may truncate old turns.
	Append(ctx context.Context, key, turn string) error
}

// Agent turns a user message plus conversation history into an answer,
// calling tools through the dispatcher as it goes.
type Agent interface {
	Respond(ctx context.Context, msg Message, history []string, dispatch ToolDispatcher) (string, error)
}

// ToolDispatcher executes one named tool call on the agent's behalf.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]string) (string, error)
	Tools() []tools.Meta
}

// RegistryDispatcher adapts the tools registry to the dispatcher contract.
type RegistryDispatcher struct {
	Registry *tools.Registry
}

func (d RegistryDispatcher) Dispatch(ctx context.Context, name string, args map[string]string) (string, error) {
	return d.Registry.Invoke(ctx, name, args)
}

func (d RegistryDispatcher) Tools() []tools.Meta {
	return d.Registry.List()
}
