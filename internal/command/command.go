// Package command classifies inbound message text into intents.
package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind names the pipeline an intent routes to.
type Kind string

const (
	KindNoMatch        Kind = "no_match"
	KindTopic          Kind = "topic"
	KindScript         Kind = "script"
	KindVisuals        Kind = "visuals"
	KindVoicePerson    Kind = "voice_person"
	KindVoice          Kind = "voice"
	KindAgenda         Kind = "agenda"
	KindHeadlineSelect Kind = "headline_select"
)

// MaxHeadlines bounds the numbers accepted as a headline selection.
const MaxHeadlines = 10

// Intent is the classified meaning of one inbound message. Content is set
// for topic, script, visuals and voice intents, VoiceName for voice_person
// and Index (1-based) for headline_select.
type Intent struct {
	Kind      Kind
	Content   string
	VoiceName string
	Index     int
}

func (i Intent) Matched() bool {
	return i.Kind != KindNoMatch
}

type rule struct {
	kind    Kind
	pattern *regexp.Regexp
	build   func(m []string) (Intent, bool)
}

func contentRule(kind Kind, pattern string) rule {
	return rule{
		kind:    kind,
		pattern: regexp.MustCompile(pattern),
		build: func(m []string) (Intent, bool) {
			return Intent{Kind: kind, Content: strings.TrimSpace(m[1])}, true
		},
	}
}

// rules are evaluated in order and the first match wins. voice_person has
// to precede voice: "voice NAME: text" would otherwise be read as a plain
// voice request.
var rules = []rule{
	contentRule(KindTopic, `(?is)^topic\s*:\s*(.+)$`),
	contentRule(KindScript, `(?is)^script\s*:\s*(.+)$`),
	contentRule(KindVisuals, `(?is)^visuals\s*:\s*(.+)$`),
	{
		kind:    KindVoicePerson,
		pattern: regexp.MustCompile(`(?is)^voice\s+([^:]+?)\s*:\s*(.+)$`),
		build: func(m []string) (Intent, bool) {
			name := strings.TrimSpace(m[1])
			if name == "" {
				return Intent{}, false
			}
			return Intent{Kind: KindVoicePerson, VoiceName: name, Content: strings.TrimSpace(m[2])}, true
		},
	},
	contentRule(KindVoice, `(?is)^voice\s*:\s*(.+)$`),
	{
		kind:    KindAgenda,
		pattern: regexp.MustCompile(`(?i)^agenda$`),
		build: func([]string) (Intent, bool) {
			return Intent{Kind: KindAgenda}, true
		},
	},
	{
		kind:    KindHeadlineSelect,
		pattern: regexp.MustCompile(`^[0-9]+$`),
		build: func(m []string) (Intent, bool) {
			n, err := strconv.Atoi(m[0])
			if err != nil || n < 1 || n > MaxHeadlines {
				return Intent{}, false
			}
			return Intent{Kind: KindHeadlineSelect, Index: n}, true
		},
	},
}

// Classify maps raw message text to an Intent. Unmatched text yields an
// intent of KindNoMatch.
func Classify(text string) Intent {
	text = strings.TrimSpace(text)
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if intent, ok := r.build(m); ok {
			return intent
		}
	}
	return Intent{Kind: KindNoMatch}
}

// RuleOrder returns the kinds in the order Classify tries them.
func RuleOrder() []Kind {
	kinds := make([]Kind, len(rules))
	for i, r := range rules {
		kinds[i] = r.kind
	}
	return kinds
}
