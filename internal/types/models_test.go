package types

import (
	"testing"
)

func TestInboundEventHasContent(t *testing.T) {
	tests := []struct {
		name  string
		event InboundEvent
		want  bool
	}{
		{"empty", InboundEvent{}, false},
		{"text", InboundEvent{Text: "agenda"}, true},
		{"audio", InboundEvent{Audio: []byte{1, 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.HasContent(); got != tt.want {
				t.Errorf("HasContent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeliveryConstructors(t *testing.T) {
	ch := ChannelID("telegram:1")

	d := TextDelivery(ch, "hello")
	if d.Kind != DeliveryText || d.Body != "hello" || d.Channel != ch {
		t.Errorf("unexpected text delivery %+v", d)
	}

	d = AudioDelivery(ch, []byte("mp3"), true, "a.mp3")
	if d.Kind != DeliveryAudio || !d.PushToTalk || d.FileName != "a.mp3" {
		t.Errorf("unexpected audio delivery %+v", d)
	}

	d = ReactionDelivery(ch, "m1", "✅")
	if d.Kind != DeliveryReaction || d.TargetMessageID != "m1" || d.Emoji != "✅" {
		t.Errorf("unexpected reaction delivery %+v", d)
	}
}
