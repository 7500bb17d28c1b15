package prompts

import "testing"

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "Just words.", "Just words."},
		{"emphasis", "This is **very** _important_.", "This is very important."},
		{"heading", "# Title\n\nBody text.", "Title\n\nBody text."},
		{"link", "Read [the report](https://example.com/r) now.", "Read the report now."},
		{"fenced block is read", "Before.\n\n```\nthe fenced words\n```\n\nAfter.", "Before.\n\nthe fenced words\n\nAfter."},
		{"indented paragraph", "First paragraph.\n\n    Second paragraph was indented by the sender.", "First paragraph.\n\nSecond paragraph was indented by the sender."},
		{"angle bracket token", "Price went up 5 * 3 times <today> & more.", "Price went up 5 * 3 times <today> & more."},
		{"html block", "<div>\nBreaking\n</div>\n\nAfter.", "<div>\nBreaking\n</div>\n\nAfter."},
		{"image alt text", "Look ![flooded street](a.png) here.", "Look flooded street here."},
		{"list", "- one\n- two\n\nEnd.", "one\ntwo\n\nEnd."},
		{"soft break", "line one\nline two", "line one line two"},
		{"urdu", "**پنجاب** میں سیلاب۔", "پنجاب میں سیلاب۔"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plain(tt.in); got != tt.want {
				t.Errorf("Plain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
