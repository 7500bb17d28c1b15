package types

import (
	"time"
)

// InboundEvent is a message received from a transport.
type InboundEvent struct {
	MessageID     MessageID `json:"message_id"`
	Source        string    `json:"source"`
	ChannelID     ChannelID `json:"channel_id"`
	SenderID      string    `json:"sender_id,omitempty"`
	SenderIsSelf  bool      `json:"sender_is_self,omitempty"`
	Text          string    `json:"text,omitempty"`
	Audio         []byte    `json:"-"`
	AudioMimeType string    `json:"audio_mime_type,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HasContent reports whether the event carries text or an audio attachment.
func (e *InboundEvent) HasContent() bool {
	return e.Text != "" || len(e.Audio) > 0
}

type DeliveryKind string

const (
	DeliveryText     DeliveryKind = "text"
	DeliveryAudio    DeliveryKind = "audio"
	DeliveryReaction DeliveryKind = "reaction"
)

// Delivery is one unit of outbound content. Which fields are set depends
// on Kind; use the constructors below.
type Delivery struct {
	Kind    DeliveryKind
	Channel ChannelID

	Body string

	Audio      []byte
	PushToTalk bool
	FileName   string

	TargetMessageID MessageID
	Emoji           string
}

func TextDelivery(channel ChannelID, body string) Delivery {
	return Delivery{Kind: DeliveryText, Channel: channel, Body: body}
}

func AudioDelivery(channel ChannelID, audio []byte, pushToTalk bool, fileName string) Delivery {
	return Delivery{Kind: DeliveryAudio, Channel: channel, Audio: audio, PushToTalk: pushToTalk, FileName: fileName}
}

func ReactionDelivery(channel ChannelID, target MessageID, emoji string) Delivery {
	return Delivery{Kind: DeliveryReaction, Channel: channel, TargetMessageID: target, Emoji: emoji}
}

// AudioOptions describes how a transport should present an audio payload.
type AudioOptions struct {
	PushToTalk bool
	FileName   string
	MimeType   string
}
