// Package channels connects messaging platforms to the message
// pipeline. Each adapter polls its platform, forwards inbound text and
// delivers the reply; all conversation logic lives behind Handler.
package channels

import "context"

// Channel names as recorded in sessions and history.
const (
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
)

// Handler processes one inbound message into one reply. Implemented by
// the agent pipeline.
type Handler interface {
	Handle(ctx context.Context, channel, userID, text string) string
	Hello(ctx context.Context) string
}

// Adapter runs one channel's polling loop until the context ends.
type Adapter interface {
	Name() string
	Run(ctx context.Context, h Handler) error
}
