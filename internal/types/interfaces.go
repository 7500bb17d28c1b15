package types

import (
	"context"
)

// Transport sends outbound content to channels of one chat platform.
// Channel arguments carry the full namespaced ID.
type Transport interface {
	SendText(ctx context.Context, channel ChannelID, body string) error
	SendAudio(ctx context.Context, channel ChannelID, audio []byte, opts AudioOptions) error
	SendReaction(ctx context.Context, channel ChannelID, target MessageID, emoji string) error
}

// TextSplitter is implemented by transports with a message size limit.
// Each returned part is sent, and retried, as its own message.
type TextSplitter interface {
	SplitText(body string) []string
}

// InboundHandler accepts events produced by a transport.
type InboundHandler interface {
	HandleInbound(ctx context.Context, event *InboundEvent) error
}
